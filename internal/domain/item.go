package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Item 是两个 backend 共同的输出结构（归一化记录）。
//
// 约束：
// - PackageName/ShareURL 必填；其余字段“来源提供才出现”（稀疏语义：省略而不是填 null）
// - 返回给调用方后即归调用方所有，不持有任何 cache/session 的引用
//
// 跨 backend 的差异刻意保留，不做“聪明”的统一：
// - protocol backend：NumDownloads/VersionCode 是数值
// - scraper backend：DownloadCount/UploadDate 是页面上的展示文本（例如 "50,000+"）
// - scraper 的 listing 模式没有 Ratings/Images/数值字段
type Item struct {
	PackageName string `json:"package_name"`
	Title       string `json:"title"`
	Creator     string `json:"creator"`
	ShareURL    string `json:"share_url"`

	UploadDate    string `json:"upload_date,omitempty"`
	NumDownloads  *int64 `json:"num_downloads,omitempty"`
	DownloadCount string `json:"download_count,omitempty"`
	VersionCode   *int64 `json:"version_code,omitempty"`

	DescriptionHTML   *string `json:"description_html,omitempty"`
	DeveloperName     *string `json:"developer_name,omitempty"`
	DeveloperWebsite  *string `json:"developer_website,omitempty"`
	VersionString     *string `json:"version_string,omitempty"`
	RecentChangesHTML *string `json:"recent_changes_html,omitempty"`

	Genres     []string    `json:"genres,omitempty"`
	CoverImage *CoverImage `json:"cover_image,omitempty"`
	Images     []Image     `json:"images,omitempty"`
	Ratings    *Ratings    `json:"ratings,omitempty"`
}

// CoverImage 是 scraper 提供的封面图。
// listing 模式三个字段都有；详情页只有 Main。
type CoverImage struct {
	Main  string `json:"main"`
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

// Image 是一张截图/图标。Type/尺寸/位置只在来源提供时出现。
type Image struct {
	Type     *int   `json:"type,omitempty"`
	URL      string `json:"url"`
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// Ratings 是评分汇总。Comments 只有 protocol backend 提供。
type Ratings struct {
	Stars    float64    `json:"stars"`
	Total    int64      `json:"total"`
	Comments *int64     `json:"comments,omitempty"`
	Count    StarCounts `json:"count"`
}

// MaxStars 是两个 backend 共同的评分上限。
const MaxStars = 5.0

// Validate 检查评分不变量：stars ∈ [0,5]，每档计数 >= 0，total >= 0。
func (r Ratings) Validate() error {
	if r.Stars < 0 || r.Stars > MaxStars {
		return fmt.Errorf("stars 超出范围 [0,5]：%v", r.Stars)
	}
	if r.Total < 0 {
		return fmt.Errorf("total 不能为负：%d", r.Total)
	}
	if r.Comments != nil && *r.Comments < 0 {
		return fmt.Errorf("comments 不能为负：%d", *r.Comments)
	}
	for i, n := range r.Count {
		if n < 0 {
			return fmt.Errorf("%d 星计数不能为负：%d", i+1, n)
		}
	}
	return nil
}

// StarCounts 按星级（1..5）保存计数；用定长数组保证“恰好 5 个 key”。
// 下标 0 对应 1 星。
type StarCounts [5]int64

// Get 返回 star 星的计数；star 不在 1..5 时返回 0。
func (c StarCounts) Get(star int) int64 {
	if star < 1 || star > 5 {
		return 0
	}
	return c[star-1]
}

// Set 设置 star 星的计数；star 不在 1..5 时忽略。
func (c *StarCounts) Set(star int, n int64) {
	if star < 1 || star > 5 {
		return
	}
	c[star-1] = n
}

// MarshalJSON 输出 {"1":n1,...,"5":n5}，与原有 API 的 JSON 形态一致。
func (c StarCounts) MarshalJSON() ([]byte, error) {
	m := make(map[string]int64, len(c))
	for i, n := range c {
		m[strconv.Itoa(i+1)] = n
	}
	return json.Marshal(m)
}

// UnmarshalJSON 接受 MarshalJSON 的输出；未知 key 视为错误。
func (c *StarCounts) UnmarshalJSON(b []byte) error {
	var m map[string]int64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out StarCounts
	for k, n := range m {
		star, err := strconv.Atoi(k)
		if err != nil || star < 1 || star > 5 {
			return fmt.Errorf("非法星级：%q", k)
		}
		out[star-1] = n
	}
	*c = out
	return nil
}

// Ptr 返回 v 的指针，方便填充可选字段。
func Ptr[T any](v T) *T { return &v }
