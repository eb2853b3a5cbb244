package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Lang 界面语言
type Lang string

const (
	LangEN Lang = "en"
	LangRU Lang = "ru"
	LangZH Lang = "zh"
)

var tables = mustLoadTables()

func mustLoadTables() map[Lang]map[string]string {
	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		panic(fmt.Sprintf("i18n: 读取语言包目录失败: %v", err))
	}
	out := make(map[Lang]map[string]string, len(entries))
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		data, err := localeFS.ReadFile("locales/" + entry.Name())
		if err != nil {
			panic(fmt.Sprintf("i18n: 读取语言包 %s 失败: %v", entry.Name(), err))
		}
		table := make(map[string]string)
		if err := yaml.Unmarshal(data, &table); err != nil {
			panic(fmt.Sprintf("i18n: 解析语言包 %s 失败: %v", entry.Name(), err))
		}
		out[Lang(name)] = table
	}
	return out
}

// Default 默认语言，来自环境变量 AGENT_LANG，默认英文
func Default() Lang {
	return normalize(os.Getenv("AGENT_LANG"))
}

// FromAcceptLanguage 从 Accept-Language 请求头解析语言，失败时回退默认语言
func FromAcceptLanguage(header string) Lang {
	lower := strings.ToLower(header)
	switch {
	case strings.Contains(lower, "ru"):
		return LangRU
	case strings.Contains(lower, "zh"):
		return LangZH
	case strings.Contains(lower, "en"):
		return LangEN
	}
	return Default()
}

func normalize(raw string) Lang {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ru":
		return LangRU
	case "zh":
		return LangZH
	default:
		return LangEN
	}
}

// T 查找翻译，未命中时回退英文，再回退 key 本身
func T(key string, lang Lang) string {
	if table, ok := tables[lang]; ok {
		if v, ok := table[key]; ok {
			return v
		}
	}
	if v, ok := tables[LangEN][key]; ok {
		return v
	}
	return key
}

// TVal 查找翻译并替换 {val} 占位符
func TVal(key string, lang Lang, val string) string {
	return strings.ReplaceAll(T(key, lang), "{val}", val)
}
