package protocol

import (
	"encoding/json"

	"github.com/John-Robertt/playproxy/internal/domain"
)

// 远端返回的原始记录。
//
// 可选成员一律用指针/可空 slice 表达：字段是否存在由解码结果决定，
// 归一化时只看结构体，不在运行时按名字探测属性。

// SearchResponse 是搜索接口的原始响应：若干结果分组，只使用第一组。
type SearchResponse struct {
	Doc []ResultGroup `json:"doc"`
}

type ResultGroup struct {
	Child []Document `json:"child"`
}

// DetailsResponse 是详情接口的原始响应；DocV2 为 nil 表示远端没有该记录。
type DetailsResponse struct {
	DocV2 *Document `json:"docV2"`
}

// Document 是一条应用记录。
type Document struct {
	DocID           string           `json:"docid"`
	Title           *string          `json:"title"`
	Creator         *string          `json:"creator"`
	ShareURL        *string          `json:"shareUrl"`
	DescriptionHTML *string          `json:"descriptionHtml"`
	Image           []Image          `json:"image"`
	Details         *DocumentDetails `json:"details"`
	AggregateRating *AggregateRating `json:"aggregateRating"`
}

type Image struct {
	ImageType          *int       `json:"imageType"`
	ImageURL           string     `json:"imageUrl"`
	Dimension          *Dimension `json:"dimension"`
	PositionInSequence *int       `json:"positionInSequence"`
}

type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type DocumentDetails struct {
	AppDetails *AppDetails `json:"appDetails"`
}

type AppDetails struct {
	PackageName       *string `json:"packageName"`
	UploadDate        *string `json:"uploadDate"`
	NumDownloads      *int64  `json:"numDownloads"`
	VersionCode       *int64  `json:"versionCode"`
	VersionString     *string `json:"versionString"`
	DeveloperName     *string `json:"developerName"`
	DeveloperWebsite  *string `json:"developerWebsite"`
	RecentChangesHTML *string `json:"recentChangesHtml"`
}

type AggregateRating struct {
	StarRating       *float64 `json:"starRating"`
	RatingsCount     *int64   `json:"ratingsCount"`
	CommentCount     *int64   `json:"commentCount"`
	OneStarRatings   int64    `json:"oneStarRatings"`
	TwoStarRatings   int64    `json:"twoStarRatings"`
	ThreeStarRatings int64    `json:"threeStarRatings"`
	FourStarRatings  int64    `json:"fourStarRatings"`
	FiveStarRatings  int64    `json:"fiveStarRatings"`
}

// DecodeSearch 解码搜索响应。
func DecodeSearch(b []byte) (SearchResponse, error) {
	var out SearchResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return SearchResponse{}, &domain.MalformedError{Source: "search", What: "无法解码响应", Err: err}
	}
	return out, nil
}

// DecodeDetails 解码详情响应；空 body 视为没有记录。
func DecodeDetails(b []byte) (*Document, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var out DetailsResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, &domain.MalformedError{Source: "details", What: "无法解码响应", Err: err}
	}
	return out.DocV2, nil
}
