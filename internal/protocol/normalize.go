package protocol

import (
	"errors"
	"strconv"
	"strings"

	"github.com/John-Robertt/playproxy/internal/domain"
)

// Normalize 把一条原始记录映射为 domain.Item（完整字段形态）。
//
// 必填：package_name/title/creator/share_url/upload_date/num_downloads/version_code 与评分；
// 缺失时返回 MalformedError。
// 可选字段只在原始记录提供时出现（省略而不是填空）。
func Normalize(doc Document) (domain.Item, error) {
	malformed := func(what string) (domain.Item, error) {
		id := doc.DocID
		if id == "" {
			id = "?"
		}
		return domain.Item{}, &domain.MalformedError{Source: "record", What: id + "：" + what}
	}

	if doc.Details == nil || doc.Details.AppDetails == nil {
		return malformed("缺少 details.appDetails")
	}
	app := doc.Details.AppDetails

	switch {
	case app.PackageName == nil || strings.TrimSpace(*app.PackageName) == "":
		return malformed("缺少 packageName")
	case doc.Title == nil:
		return malformed("缺少 title")
	case doc.Creator == nil:
		return malformed("缺少 creator")
	case doc.ShareURL == nil || strings.TrimSpace(*doc.ShareURL) == "":
		return malformed("缺少 shareUrl")
	case app.UploadDate == nil:
		return malformed("缺少 uploadDate")
	case app.NumDownloads == nil:
		return malformed("缺少 numDownloads")
	case app.VersionCode == nil:
		return malformed("缺少 versionCode")
	}

	item := domain.Item{
		PackageName:  *app.PackageName,
		Title:        *doc.Title,
		Creator:      *doc.Creator,
		ShareURL:     *doc.ShareURL,
		UploadDate:   *app.UploadDate,
		NumDownloads: domain.Ptr(*app.NumDownloads),
		VersionCode:  domain.Ptr(*app.VersionCode),

		DescriptionHTML:   copyString(doc.DescriptionHTML),
		DeveloperName:     copyString(app.DeveloperName),
		DeveloperWebsite:  copyString(app.DeveloperWebsite),
		VersionString:     copyString(app.VersionString),
		RecentChangesHTML: copyString(app.RecentChangesHTML),
	}

	for i, raw := range doc.Image {
		img, err := normalizeImage(raw)
		if err != nil {
			return malformed("image[" + strconv.Itoa(i) + "]：" + err.Error())
		}
		item.Images = append(item.Images, img)
	}

	ratings, err := normalizeRatings(doc.AggregateRating)
	if err != nil {
		return malformed(err.Error())
	}
	item.Ratings = &ratings

	return item, nil
}

func normalizeImage(raw Image) (domain.Image, error) {
	if raw.ImageType == nil {
		return domain.Image{}, errors.New("缺少 imageType")
	}
	if strings.TrimSpace(raw.ImageURL) == "" {
		return domain.Image{}, errors.New("缺少 imageUrl")
	}
	img := domain.Image{
		Type: domain.Ptr(*raw.ImageType),
		URL:  raw.ImageURL,
	}
	if raw.Dimension != nil {
		img.Width = domain.Ptr(raw.Dimension.Width)
		img.Height = domain.Ptr(raw.Dimension.Height)
	}
	if raw.PositionInSequence != nil {
		img.Position = domain.Ptr(*raw.PositionInSequence)
	}
	return img, nil
}

func normalizeRatings(raw *AggregateRating) (domain.Ratings, error) {
	if raw == nil {
		return domain.Ratings{}, errors.New("缺少 aggregateRating")
	}
	if raw.StarRating == nil || raw.RatingsCount == nil || raw.CommentCount == nil {
		return domain.Ratings{}, errors.New("aggregateRating 缺少 starRating/ratingsCount/commentCount")
	}
	r := domain.Ratings{
		Stars:    *raw.StarRating,
		Total:    *raw.RatingsCount,
		Comments: domain.Ptr(*raw.CommentCount),
		Count: domain.StarCounts{
			raw.OneStarRatings,
			raw.TwoStarRatings,
			raw.ThreeStarRatings,
			raw.FourStarRatings,
			raw.FiveStarRatings,
		},
	}
	if err := r.Validate(); err != nil {
		return domain.Ratings{}, err
	}
	return r, nil
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	return domain.Ptr(*p)
}
