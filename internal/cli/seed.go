package cli

import (
	"time"

	"github.com/tkonno/koyama-events/internal/event"
)

// demoEvents builds the sample events used for local development and app
// store review builds. Dates are offsets from now so the set always looks
// current; ids are derived the same way scraped events get theirs, which
// makes reseeding idempotent on the same day.
func demoEvents(now time.Time) []*event.Event {
	type seed struct {
		title       string
		daysAhead   int
		timeRange   string
		location    string
		address     string
		description string
		category    []event.Category
		area        event.Area
		source      string
		sourceURL   string
	}

	seeds := []seed{
		{
			title:       "西小山あじさい祭り",
			daysAhead:   3,
			timeRange:   "10:00-16:00",
			location:    "西小山駅前広場",
			address:     "東京都目黒区原町1-1",
			description: "梅雨を彩る紫陽花の展示即売会。地域の飲食店による屋台、傘のペイントワークショップなど、雨の日も楽しめるイベントが盛りだくさん！",
			category:    []event.Category{event.CategoryFamily, event.CategoryFree, event.CategoryFood},
			area:        event.AreaNishikoyama,
			source:      "nishikoyama_shopping",
			sourceURL:   "https://example.com/ajisai-festival",
		},
		{
			title:       "親子でヨガ体験教室",
			daysAhead:   5,
			timeRange:   "14:00-15:00",
			location:    "西小山区民センター",
			address:     "東京都品川区小山6-1-1",
			description: "初心者歓迎！親子で楽しめるヨガ教室です。運動不足解消にもぴったり。参加費無料、要事前申込。",
			category:    []event.Category{event.CategoryFamily, event.CategoryFree, event.CategorySports},
			area:        event.AreaNishikoyama,
			source:      "shinagawa_official",
			sourceURL:   "https://example.com/yoga-class",
		},
		{
			title:       "西小山夏祭り前夜祭",
			daysAhead:   7,
			timeRange:   "11:00-17:00",
			location:    "西小山商店街",
			address:     "東京都目黒区原町",
			description: "夏本番に向けて商店街が盛り上がる！かき氷、冷やし中華など夏メニューの食べ歩き。浴衣で来場すると特典あり！",
			category:    []event.Category{event.CategoryFood, event.CategoryFamily},
			area:        event.AreaNishikoyama,
			source:      "nishikoyama_shopping",
			sourceURL:   "https://example.com/summer-festival",
		},
		{
			title:       "シニア向け スマホ講座",
			daysAhead:   10,
			timeRange:   "10:00-12:00",
			location:    "目黒区立原町住区センター",
			address:     "東京都目黒区原町1-8-8",
			description: "LINEの使い方から写真の撮り方まで、基礎から丁寧に教えます。参加無料、定員20名。",
			category:    []event.Category{event.CategorySenior, event.CategoryFree},
			area:        event.AreaNishikoyama,
			source:      "meguro_official",
			sourceURL:   "https://example.com/smartphone-class",
		},
		{
			title:       "地域清掃ボランティア",
			daysAhead:   14,
			timeRange:   "9:00-11:00",
			location:    "西小山駅周辺",
			address:     "東京都目黒区原町",
			description: "月に一度の地域清掃活動。みんなで西小山をきれいにしましょう！軍手・ゴミ袋は用意します。",
			category:    []event.Category{event.CategoryFree},
			area:        event.AreaNishikoyama,
			source:      "nishikoyama_community",
			sourceURL:   "https://example.com/cleaning-volunteer",
		},
	}

	events := make([]*event.Event, 0, len(seeds))
	for _, s := range seeds {
		date := now.AddDate(0, 0, s.daysAhead).Format("2006-01-02")
		events = append(events, &event.Event{
			ID:          event.GenerateID(s.title, date, s.sourceURL),
			Title:       s.title,
			Date:        date,
			Time:        s.timeRange,
			Location:    s.location,
			Address:     s.address,
			Description: s.description,
			Category:    s.category,
			Area:        s.area,
			Source:      s.source,
			SourceURL:   s.sourceURL,
			IsDemo:      true,
			CreatedAt:   now.UTC(),
			UpdatedAt:   now.UTC(),
		})
	}
	return events
}
