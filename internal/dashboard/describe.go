package dashboard

import (
	"fmt"

	"github.com/hitoshi/autoblog/internal/model"
)

// Describe はログ1件を表示用の1行の文章にする。
func Describe(t model.LogType, info map[string]any) string {
	switch t {
	case model.LogTypePostImported:
		return fmt.Sprintf("Imported post %q", str(info, "title"))
	case model.LogTypeDuplicateSkipped:
		return fmt.Sprintf("Skipped duplicate %q", str(info, "title"))
	case model.LogTypePostFailed:
		return fmt.Sprintf("Failed to import item: %s", str(info, "reason"))
	case model.LogTypeImageAssigned:
		return fmt.Sprintf("Featured image set from %s", str(info, "image_url"))
	case model.LogTypeImageDefault:
		if u := str(info, "image_url"); u != "" {
			return fmt.Sprintf("Default featured image used (could not fetch %s)", u)
		}
		return "Default featured image used"
	case model.LogTypeImageNone:
		if u := str(info, "image_url"); u != "" {
			return fmt.Sprintf("No featured image (could not fetch %s)", u)
		}
		return "No featured image found"
	case model.LogTypeFeedError:
		return fmt.Sprintf("Feed error: %s", str(info, "error"))
	case model.LogTypeFeedProcessed:
		return fmt.Sprintf("Processed %s items: %s imported, %s duplicates, %s images",
			str(info, "items"), str(info, "imported"), str(info, "duplicates"), str(info, "images"))
	default:
		return string(t)
	}
}

// str はlog_infoの値を文字列にする。JSONから復元した数値はfloat64になるため整数として扱う。
func str(info map[string]any, key string) string {
	v, ok := info[key]
	if !ok || v == nil {
		return ""
	}
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return fmt.Sprintf("%d", int64(n))
	default:
		return fmt.Sprint(n)
	}
}
