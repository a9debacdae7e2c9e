package i18n

// Supported languages
const (
	LangEN = "en"
	LangVI = "vi"
)

// DefaultLanguage is the fallback language
const DefaultLanguage = LangEN

// Languages lists the UI languages in display order.
var Languages = []string{LangEN, LangVI}

// LanguageNames maps language codes to their display names
var LanguageNames = map[string]string{
	LangEN: "English",
	LangVI: "Tiếng Việt",
}

// Translations holds all translations
type Translations map[string]map[string]string

// Get returns a translation for a given language and key
func Get(lang, key string) string {
	if trans, ok := translations[lang]; ok {
		if val, ok := trans[key]; ok {
			return val
		}
	}
	// Fallback to English
	if trans, ok := translations[DefaultLanguage]; ok {
		if val, ok := trans[key]; ok {
			return val
		}
	}
	return key
}

// Supported reports whether lang has a translation table.
func Supported(lang string) bool {
	_, ok := translations[lang]
	return ok
}

var translations = Translations{
	LangEN: {
		"app_name":             "SlideVoice",
		"tagline":              "Narrated slide decks",
		"upload_deck":          "Upload a presentation",
		"deck_file":            "Slide deck (.ppt, .pptx)",
		"deck_hint":            "Maximum size (MB)",
		"materials_file":       "Supporting material (optional)",
		"materials_hint":       ".doc, .docx, .pdf, .txt, .md, .rtf",
		"generate_script":      "Generate narration script",
		"upload_button":        "Upload",
		"recent":               "Recent presentations",
		"no_presentations":     "No presentations yet. Upload one!",
		"file":                 "File",
		"slides":               "Slides",
		"uploaded":             "Uploaded",
		"open":                 "Open",
		"unknown":              "unknown",
		"documents":            "Reference documents",
		"description":          "Description",
		"upload_document":      "Upload document",
		"document_uploaded":    "Document uploaded.",
		"previous":             "Previous",
		"next":                 "Next",
		"slide":                "Slide",
		"of":                   "of",
		"go":                   "Go",
		"play_original":        "Play slide text",
		"play_generated":       "Play narration",
		"stop":                 "Stop",
		"show_script":          "Show script",
		"hide_script":          "Hide script",
		"script_source":        "Source",
		"upload_materials":     "Upload material",
		"close_view":           "Close",
		"loading":              "Loading…",
		"back":                 "Back to uploads",
		"viewer_expires":       "Viewer link expires",
		"progress":             "Progress",
		"uploading":            "Uploading deck",
		"processing-materials": "Processing materials",
		"generating-script":    "Generating script",
		"no_audio":             "No audio loaded.",
		"upload_failed":        "Upload did not finish",
		"failed_step":          "Failed step",
		"deck_available":       "The deck was uploaded and can still be opened.",
	},
	LangVI: {
		"app_name":             "SlideVoice",
		"tagline":              "Bài trình chiếu có thuyết minh",
		"upload_deck":          "Tải lên bài trình chiếu",
		"deck_file":            "Tệp trình chiếu (.ppt, .pptx)",
		"deck_hint":            "Dung lượng tối đa (MB)",
		"materials_file":       "Tài liệu bổ sung (không bắt buộc)",
		"materials_hint":       ".doc, .docx, .pdf, .txt, .md, .rtf",
		"generate_script":      "Tạo kịch bản thuyết minh",
		"upload_button":        "Tải lên",
		"recent":               "Bài trình chiếu gần đây",
		"no_presentations":     "Chưa có bài trình chiếu nào.",
		"file":                 "Tệp",
		"slides":               "Số trang",
		"uploaded":             "Đã tải lên",
		"open":                 "Mở",
		"unknown":              "chưa rõ",
		"documents":            "Tài liệu tham khảo",
		"description":          "Mô tả",
		"upload_document":      "Tải tài liệu lên",
		"document_uploaded":    "Đã tải tài liệu lên.",
		"previous":             "Trang trước",
		"next":                 "Trang sau",
		"slide":                "Trang",
		"of":                   "/",
		"go":                   "Đến",
		"play_original":        "Đọc nội dung trang",
		"play_generated":       "Phát thuyết minh",
		"stop":                 "Dừng",
		"show_script":          "Hiện kịch bản",
		"hide_script":          "Ẩn kịch bản",
		"script_source":        "Nguồn",
		"upload_materials":     "Tải tài liệu",
		"close_view":           "Đóng",
		"loading":              "Đang tải…",
		"back":                 "Quay lại",
		"viewer_expires":       "Liên kết xem hết hạn",
		"progress":             "Tiến độ",
		"uploading":            "Đang tải tệp lên",
		"processing-materials": "Đang xử lý tài liệu",
		"generating-script":    "Đang tạo kịch bản",
		"no_audio":             "Chưa có âm thanh.",
		"upload_failed":        "Tải lên chưa hoàn tất",
		"failed_step":          "Bước bị lỗi",
		"deck_available":       "Bài trình chiếu đã được tải lên và vẫn có thể mở.",
	},
}
