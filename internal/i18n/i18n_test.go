package i18n

import (
	"strings"
	"testing"
)

func TestTablesCoverAllLanguages(t *testing.T) {
	for _, lang := range []Lang{LangEN, LangRU, LangZH} {
		if _, ok := tables[lang]; !ok {
			t.Errorf("缺少语言包 %s", lang)
		}
	}
}

func TestTranslationsAreComplete(t *testing.T) {
	// 英文是基准语言，其他语言包必须覆盖全部键
	base := tables[LangEN]
	if len(base) == 0 {
		t.Fatal("英文语言包为空")
	}
	for _, lang := range []Lang{LangRU, LangZH} {
		for key := range base {
			if _, ok := tables[lang][key]; !ok {
				t.Errorf("语言包 %s 缺少键 %q", lang, key)
			}
		}
	}
}

func TestTFallsBack(t *testing.T) {
	tests := []struct {
		name string
		key  string
		lang Lang
		want string
	}{
		{name: "direct hit", key: "ssh.user", lang: LangRU, want: tables[LangRU]["ssh.user"]},
		{name: "unknown lang falls back to english", key: "ssh.user", lang: Lang("fr"), want: tables[LangEN]["ssh.user"]},
		{name: "unknown key returns key", key: "no.such.key", lang: LangEN, want: "no.such.key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := T(tt.key, tt.lang); got != tt.want {
				t.Errorf("T(%q, %q) = %q, 想要 %q", tt.key, tt.lang, got, tt.want)
			}
		})
	}
}

func TestTValReplacesPlaceholder(t *testing.T) {
	got := TVal("alert.critical_cpu", LangEN, "97.3")
	if !strings.Contains(got, "97.3") {
		t.Errorf("占位符未被替换: %q", got)
	}
	if strings.Contains(got, "{val}") {
		t.Errorf("不应残留占位符: %q", got)
	}
}

func TestDefaultFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want Lang
	}{
		{env: "", want: LangEN},
		{env: "en", want: LangEN},
		{env: "ru", want: LangRU},
		{env: "RU", want: LangRU},
		{env: "zh", want: LangZH},
		{env: " zh ", want: LangZH},
		{env: "de", want: LangEN},
	}

	for _, tt := range tests {
		t.Setenv("AGENT_LANG", tt.env)
		if got := Default(); got != tt.want {
			t.Errorf("AGENT_LANG=%q: 想要 %s, 实际 %s", tt.env, tt.want, got)
		}
	}
}

func TestFromAcceptLanguage(t *testing.T) {
	t.Setenv("AGENT_LANG", "")

	tests := []struct {
		header string
		want   Lang
	}{
		{header: "ru-RU,ru;q=0.9", want: LangRU},
		{header: "zh-CN,zh;q=0.9", want: LangZH},
		{header: "en-US,en;q=0.9", want: LangEN},
		{header: "fr-FR", want: LangEN},
		{header: "", want: LangEN},
	}

	for _, tt := range tests {
		if got := FromAcceptLanguage(tt.header); got != tt.want {
			t.Errorf("FromAcceptLanguage(%q) = %s, 想要 %s", tt.header, got, tt.want)
		}
	}
}
