// Package classify assigns a geographic area and topical categories to an
// event from its combined text. The keyword tables are explicit, versioned
// data injected into the Classifier so they can be tested and extended
// without touching the decision logic.
package classify

import (
	"strings"

	"github.com/tkonno/koyama-events/internal/event"
)

// AreaRule binds one area to the keywords that vote for it. Rule order is
// the declared precedence for tie-breaking.
type AreaRule struct {
	Area     event.Area
	Keywords []string
}

// CategoryRule binds one category to the keywords that trigger it.
type CategoryRule struct {
	Category event.Category
	Keywords []string
}

// DefaultAreaRules is the production keyword table. The shinagawa_other rule
// lists landmarks outside both neighbourhoods; per the decision rule it only
// decides when neither named area matches, which also makes it the default.
var DefaultAreaRules = []AreaRule{
	{
		Area:     event.AreaNishikoyama,
		Keywords: []string{"西小山", "にしこやま", "nishikoyama", "原町"},
	},
	{
		Area:     event.AreaMusashikoyama,
		Keywords: []string{"武蔵小山", "musashikoyama", "パルム", "palm"},
	},
	{
		Area:     event.AreaShinagawaOther,
		Keywords: []string{"五反田", "大井町", "大崎", "北品川", "品川駅", "戸越", "目黒駅", "天王洲"},
	},
}

// DefaultCategoryRules is the production category table.
var DefaultCategoryRules = []CategoryRule{
	{event.CategoryFamily, []string{"親子", "子ども", "子供", "キッズ", "ファミリー"}},
	{event.CategoryFree, []string{"無料", "参加費無料", "費用なし"}},
	{event.CategoryFood, []string{"グルメ", "マルシェ", "屋台", "フード", "飲食", "食べ歩き", "試食"}},
	{event.CategorySports, []string{"スポーツ", "体操", "ヨガ", "ウォーキング", "ラジオ体操"}},
	{event.CategoryCulture, []string{"展示", "美術", "音楽", "コンサート", "文化", "アート", "ライブ", "演奏"}},
	{event.CategorySenior, []string{"シニア", "高齢者", "敬老"}},
	{event.CategorySale, []string{"セール", "sale", "お得", "割引", "特売"}},
	{event.CategoryWorkshop, []string{"ワークショップ", "体験", "教室", "講座", "づくり"}},
	{event.CategoryFestival, []string{"祭", "まつり", "フェス", "縁日"}},
	{event.CategoryMarket, []string{"市", "マーケット", "蚤の市", "即売会", "フリーマーケット"}},
	{event.CategoryLocal, []string{"商店街", "地域", "町会", "西小山", "武蔵小山"}},
}

// Classifier evaluates the keyword tables. It holds no mutable state, so
// classification is pure: identical input text always yields identical output.
type Classifier struct {
	areas      []AreaRule
	categories []CategoryRule
}

// New creates a Classifier with the given tables.
func New(areas []AreaRule, categories []CategoryRule) *Classifier {
	return &Classifier{areas: areas, categories: categories}
}

// NewDefault creates a Classifier with the production tables.
func NewDefault() *Classifier {
	return New(DefaultAreaRules, DefaultCategoryRules)
}

// CombinedText joins the evidence fields an event exposes for
// classification, lowercased. Source ids participate deliberately: a record
// from musashikoyama_palm is area evidence on its own.
func CombinedText(title, location, address, source string) string {
	return strings.ToLower(title + " " + location + " " + address + " " + source)
}

// Area classifies text into exactly one area. The decision is total:
//   - shinagawa_other keywords only decide when no named area matches;
//   - a single matching named area wins outright;
//   - when both named areas match, the larger keyword match count wins,
//     ties falling to table declaration order;
//   - no match at all lands in shinagawa_other.
func (c *Classifier) Area(text string) event.Area {
	text = strings.ToLower(text)

	best := event.AreaShinagawaOther
	bestCount := 0
	for _, rule := range c.areas {
		if rule.Area == event.AreaShinagawaOther {
			continue
		}
		if n := matchCount(text, rule.Keywords); n > bestCount {
			best = rule.Area
			bestCount = n
		}
	}
	return best
}

// Categories classifies text into every matching category, in table order.
// The result is never empty: CategoryGeneral is emitted when nothing matches.
func (c *Classifier) Categories(text string) []event.Category {
	text = strings.ToLower(text)

	var out []event.Category
	for _, rule := range c.categories {
		if matchCount(text, rule.Keywords) > 0 {
			out = append(out, rule.Category)
		}
	}
	if len(out) == 0 {
		out = []event.Category{event.CategoryGeneral}
	}
	return out
}

func matchCount(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}
