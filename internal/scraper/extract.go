package scraper

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/playproxy/internal/domain"
)

// extractor 把一个已抓取的页面解析为 domain.Item。
// resolve 用于把页面里的相对地址转为绝对 URL（通常是 Fetcher.Canonicalize）。
//
// 三种模式：
// - cards + listing：搜索结果/开发者列表中的卡片（字段精简）
// - details：详情页（字段完整）
type extractor struct {
	resolve func(string) string
}

var (
	multiSpaceRE = regexp.MustCompile(`\s{2,}`)
	webLinkRE    = regexp.MustCompile(`^https?://`)
)

// starBars 是详情页五个评分条的 class 名，按星级排列。
var starBars = [5]string{"one", "two", "three", "four", "five"}

func parseDocument(source string, b []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, &domain.MalformedError{Source: source, What: "无法解析 HTML", Err: err}
	}
	return doc, nil
}

// cards 返回页面中所有带 data-docid 的卡片（文档顺序）。
func (x extractor) cards(doc *goquery.Document) *goquery.Selection {
	return doc.Find("div.card[data-docid]")
}

func cardID(card *goquery.Selection) string {
	id, _ := card.Attr("data-docid")
	return strings.TrimSpace(id)
}

// listing 按 listing 模式解析一张卡片：
// 只有 package_name/share_url/title/creator/description_html/cover_image，
// 没有评分、多图与数值字段（与 protocol backend 的搜索结果不同，属于刻意保留的差异）。
func (x extractor) listing(card *goquery.Selection) (domain.Item, error) {
	pkg := cardID(card)
	if pkg == "" {
		return domain.Item{}, &domain.MalformedError{Source: "listing", What: "卡片缺少 data-docid"}
	}

	href, ok := card.Find("a.card-click-target").First().Attr("href")
	if !ok {
		return domain.Item{}, &domain.MalformedError{Source: "listing", What: pkg + "：缺少 a.card-click-target[href]"}
	}
	title, ok := card.Find("a.title[title]").First().Attr("title")
	if !ok {
		return domain.Item{}, &domain.MalformedError{Source: "listing", What: pkg + "：缺少 a.title[title]"}
	}
	creator, ok := card.Find("a.subtitle[title]").First().Attr("title")
	if !ok {
		return domain.Item{}, &domain.MalformedError{Source: "listing", What: pkg + "：缺少 a.subtitle[title]"}
	}

	item := domain.Item{
		PackageName: pkg,
		ShareURL:    x.resolve(href),
		Title:       title,
		Creator:     creator,
	}

	if desc := card.Find("div.description").First(); desc.Length() > 0 {
		item.DescriptionHTML = domain.Ptr(listingDescription(desc))
	}

	if img := card.Find("img.cover-image").First(); img.Length() > 0 {
		item.CoverImage = &domain.CoverImage{
			Main:  x.resolve(img.AttrOr("src", "")),
			Small: x.resolve(img.AttrOr("data-cover-small", "")),
			Large: x.resolve(img.AttrOr("data-cover-large", "")),
		}
	}
	return item, nil
}

// listingDescription：每个子节点的文本各自压缩空白，以空行连接，去掉首尾空白后把换行替换为 <br/>。
func listingDescription(desc *goquery.Selection) string {
	var parts []string
	desc.Contents().Each(func(_ int, c *goquery.Selection) {
		parts = append(parts, collapse(c.Text()))
	})
	s := strings.TrimSpace(strings.Join(parts, "\n\n"))
	return strings.ReplaceAll(s, "\n", "<br/>")
}

// details 解析详情页。
//
// 返回 ok=false 表示页面没有标识 pkg（不存在、被重定向到其他应用等），不是错误。
// 必需元素：标题、作者名、canonical 链接、评分区；缺失时返回 MalformedError。
// upload_date/download_count 保留页面展示文本（例如 "50,000+"），不做数值化。
func (x extractor) details(doc *goquery.Document, pkg string) (domain.Item, bool, error) {
	main := doc.Find("div.main-content").First()
	if main.Length() == 0 {
		return domain.Item{}, false, nil
	}
	identified := main.Find("[data-docid]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("data-docid", "") == pkg
	}).Length() > 0
	if !identified {
		return domain.Item{}, false, nil
	}

	malformed := func(what string) (domain.Item, bool, error) {
		return domain.Item{}, false, &domain.MalformedError{Source: "details", What: pkg + "：" + what}
	}

	title := main.Find("div.document-title").First()
	if title.Length() == 0 {
		return malformed("缺少 div.document-title")
	}
	devName := main.Find("div[itemprop=author]").First().Find("a.primary").First().Find("span[itemprop=name]").First()
	if devName.Length() == 0 {
		return malformed("缺少作者名")
	}
	canonical, ok := doc.Find("link[rel=canonical]").First().Attr("href")
	if !ok {
		return malformed("缺少 link[rel=canonical]")
	}
	ratings, err := detailRatings(main.Find("div.reviews").First())
	if err != nil {
		return malformed(err.Error())
	}

	developer := strings.TrimSpace(devName.Text())
	item := domain.Item{
		PackageName:   pkg,
		Title:         strings.TrimSpace(title.Text()),
		ShareURL:      x.resolve(canonical),
		Creator:       developer,
		DeveloperName: domain.Ptr(developer),
		Ratings:       &ratings,
	}

	if src, ok := main.Find("img.cover-image").First().Attr("src"); ok {
		item.CoverImage = &domain.CoverImage{Main: x.resolve(src)}
	}

	main.Find("a.dev-link").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !webLinkRE.MatchString(href) {
			return true
		}
		item.DeveloperWebsite = domain.Ptr(href)
		return false
	})

	if desc := main.Find("div.show-more-content div:nth-of-type(1)").First(); desc.Length() > 0 {
		var b strings.Builder
		desc.Contents().Each(func(_ int, c *goquery.Selection) {
			h, err := goquery.OuterHtml(c)
			if err != nil {
				return
			}
			b.WriteString(collapse(h))
		})
		item.DescriptionHTML = domain.Ptr(b.String())
	}

	main.Find("img.full-screenshot").Each(func(_ int, img *goquery.Selection) {
		item.Images = append(item.Images, domain.Image{URL: x.resolve(img.AttrOr("src", ""))})
	})

	main.Find("span[itemprop=genre]").Each(func(_ int, g *goquery.Selection) {
		item.Genres = append(item.Genres, strings.TrimSpace(g.Text()))
	})

	if wn := main.Find("div.whatsnew").First(); wn.Length() > 0 {
		var changes []string
		wn.Find("div.recent-change").Each(func(_ int, c *goquery.Selection) {
			changes = append(changes, collapse(c.Text()))
		})
		item.RecentChangesHTML = domain.Ptr(strings.TrimSpace(strings.Join(changes, "<br/>")))
	}

	if d := main.Find("div[itemprop=datePublished]").First(); d.Length() > 0 {
		item.UploadDate = strings.TrimSpace(d.Text())
	}
	if d := main.Find("div[itemprop=numDownloads]").First(); d.Length() > 0 {
		item.DownloadCount = strings.TrimSpace(d.Text())
	}

	return item, true, nil
}

// detailRatings 从评分区读取 ratingValue/ratingCount 标记和五个评分条。
func detailRatings(reviews *goquery.Selection) (domain.Ratings, error) {
	var r domain.Ratings
	if reviews.Length() == 0 {
		return r, errors.New("缺少 div.reviews")
	}

	stars, ok := reviews.Find("meta[itemprop=ratingValue]").First().Attr("content")
	if !ok {
		return r, errors.New("缺少 ratingValue")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(stars), 64)
	if err != nil {
		return r, errors.New("ratingValue 非法：" + stars)
	}
	r.Stars = v

	total, ok := reviews.Find("meta[itemprop=ratingCount]").First().Attr("content")
	if !ok {
		return r, errors.New("缺少 ratingCount")
	}
	n, err := parseCount(total)
	if err != nil {
		return r, errors.New("ratingCount 非法：" + total)
	}
	r.Total = n

	for i, class := range starBars {
		bar := reviews.Find("div.rating-bar-container." + class).First().Find("span.bar-number").First()
		if bar.Length() == 0 {
			return r, errors.New("缺少评分条：" + class)
		}
		n, err := parseCount(bar.Text())
		if err != nil {
			return r, errors.New("评分条计数非法：" + class)
		}
		r.Count.Set(i+1, n)
	}

	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// parseCount 解析带千分位的整数，例如 "1,234"。
func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", ".", "", " ", "", "\u00a0", "").Replace(s)
	return strconv.ParseInt(s, 10, 64)
}

func collapse(s string) string { return multiSpaceRE.ReplaceAllString(s, " ") }
