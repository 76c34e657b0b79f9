// Package i18n renders the message keys emitted by the storage layer in the
// user's language.
package i18n

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LangParam is the query parameter that overrides Accept-Language.
const LangParam = "lang"

var supported = []language.Tag{
	language.AmericanEnglish,
	language.SimplifiedChinese,
}

var matcher = language.NewMatcher(supported)

// Messages with a %s placeholder receive the offending field name.
var catalog = map[string][2]string{
	"storage_name_empty":      {"Storage name is required", "存储名称不能为空"},
	"storage_name_invalid":    {"Storage name contains invalid characters", "存储名称包含非法字符"},
	"parameter_required":      {"Parameter %s is required", "参数 %s 为必填项"},
	"parameter_invalid":       {"Parameter %s has an invalid value", "参数 %s 的值无效"},
	"parameter_out_of_range":  {"Parameter %s is out of range", "参数 %s 超出范围"},
	"parameter_not_an_option": {"Parameter %s must be one of the listed options", "参数 %s 必须是列出的选项之一"},
	"path_required":           {"A path is required", "路径不能为空"},
	"file_name_invalid":       {"The new name must not contain a path separator", "新名称不能包含路径分隔符"},
	"mount_point_required":    {"A mount point is required", "挂载点不能为空"},
	"unknown_kind":            {"Unknown storage type", "未知的存储类型"},
	"not_found":               {"Not found", "未找到"},
	"backend_rejected":        {"The storage backend rejected the request", "存储后端拒绝了该请求"},
	"backend_unavailable":     {"The storage backend could not be reached", "无法连接存储后端"},
	"internal_error":          {"Internal error", "内部错误"},
}

func init() {
	for key, texts := range catalog {
		for i, tag := range supported {
			mustSetString(tag, key, texts[i])
		}
	}
}

func mustSetString(tag language.Tag, key, msg string) {
	if err := message.SetString(tag, key, msg); err != nil {
		panic(fmt.Sprintf("i18n: register %q for %s: %v", key, tag, err))
	}
}

// Supported returns the languages messages are available in.
func Supported() []language.Tag {
	return supported
}

// Match picks the best supported language for a list of preferences such as
// an Accept-Language header. Unknown or empty input yields English.
func Match(prefs string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(prefs)
	if err != nil || len(tags) == 0 {
		return supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// ResolveTag determines the language for r from ?lang= then Accept-Language.
func ResolveTag(r *http.Request) language.Tag {
	if lang := strings.TrimSpace(r.URL.Query().Get(LangParam)); lang != "" {
		return Match(lang)
	}
	return Match(r.Header.Get("Accept-Language"))
}

// Translate renders key in tag. field fills the placeholder of messages that
// name a parameter.
func Translate(tag language.Tag, key, field string) string {
	texts, ok := catalog[key]
	if !ok {
		return key
	}
	p := message.NewPrinter(tag)
	if strings.Contains(texts[0], "%s") {
		return p.Sprintf(key, field)
	}
	return p.Sprintf(key)
}
