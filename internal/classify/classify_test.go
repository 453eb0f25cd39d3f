package classify

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tkonno/koyama-events/internal/event"
)

func TestArea(t *testing.T) {
	c := NewDefault()

	tests := []struct {
		name string
		text string
		want event.Area
	}{
		{
			name: "nishikoyama keyword",
			text: "西小山あじさい祭り 西小山駅前広場",
			want: event.AreaNishikoyama,
		},
		{
			name: "haramachi counts as nishikoyama",
			text: "清掃活動 東京都目黒区原町",
			want: event.AreaNishikoyama,
		},
		{
			name: "musashikoyama keyword",
			text: "武蔵小山 サマーフェスティバル",
			want: event.AreaMusashikoyama,
		},
		{
			name: "palm arcade counts as musashikoyama",
			text: "パルム秋の大売出し",
			want: event.AreaMusashikoyama,
		},
		{
			name: "source id is area evidence",
			text: CombinedText("縁日のお知らせ", "", "", "musashikoyama_palm"),
			want: event.AreaMusashikoyama,
		},
		{
			name: "both areas match, higher count wins",
			text: "武蔵小山パルム palmウォーク 西小山",
			want: event.AreaMusashikoyama,
		},
		{
			name: "equal counts fall to declaration order",
			text: "西小山と武蔵小山をむすぶスタンプラリー",
			want: event.AreaNishikoyama,
		},
		{
			name: "other ward landmark",
			text: "戸越銀座 食べ歩きツアー",
			want: event.AreaShinagawaOther,
		},
		{
			name: "no evidence defaults to shinagawa other",
			text: "区民まつりのお知らせ",
			want: event.AreaShinagawaOther,
		},
		{
			name: "named area beats other landmark",
			text: "五反田発 西小山ゆきウォーキング",
			want: event.AreaNishikoyama,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Area(tt.text); got != tt.want {
				t.Errorf("Area(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestAreaIsPure(t *testing.T) {
	c := NewDefault()
	text := "武蔵小山パルム 西小山"
	first := c.Area(text)
	for range 10 {
		if got := c.Area(text); got != first {
			t.Fatalf("Area not deterministic: %q then %q", first, got)
		}
	}
}

func TestCategories(t *testing.T) {
	c := NewDefault()

	tests := []struct {
		name string
		text string
		want []event.Category
	}{
		{
			name: "single category",
			text: "シニアの集い",
			want: []event.Category{event.CategorySenior},
		},
		{
			name: "multiple categories in table order",
			text: "親子で楽しむ 無料ヨガ教室",
			want: []event.Category{
				event.CategoryFamily,
				event.CategoryFree,
				event.CategorySports,
				event.CategoryWorkshop,
			},
		},
		{
			name: "festival and food",
			text: "夏祭り 屋台多数出店",
			want: []event.Category{event.CategoryFood, event.CategoryFestival},
		},
		{
			name: "case insensitive latin keyword",
			text: "SUMMER SALE開催",
			want: []event.Category{event.CategorySale},
		},
		{
			name: "no match falls back to general",
			text: "お知らせ",
			want: []event.Category{event.CategoryGeneral},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Categories(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Categories(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestCombinedText(t *testing.T) {
	got := CombinedText("Summer Festival", "Palm Arcade", "Tokyo", "musashikoyama_palm")
	want := "summer festival palm arcade tokyo musashikoyama_palm"
	if got != want {
		t.Errorf("CombinedText = %q, want %q", got, want)
	}
}
