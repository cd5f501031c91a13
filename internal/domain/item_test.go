package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStarCounts_JSONHasExactlyFiveKeys(t *testing.T) {
	var c StarCounts
	c.Set(1, 3)
	c.Set(5, 9)
	c.Set(6, 100) // 忽略

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if string(b) != `{"1":3,"2":0,"3":0,"4":0,"5":9}` {
		t.Fatalf("JSON 不符合预期：%s", b)
	}

	var back StarCounts
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if back != c {
		t.Fatalf("往返结果不一致：%v vs %v", back, c)
	}
	if back.Get(0) != 0 || back.Get(5) != 9 {
		t.Fatalf("Get 越界/取值不符合预期")
	}
}

func TestStarCounts_UnmarshalRejectsUnknownStar(t *testing.T) {
	var c StarCounts
	if err := json.Unmarshal([]byte(`{"0":1}`), &c); err == nil {
		t.Fatalf("期望非法星级报错")
	}
	if err := json.Unmarshal([]byte(`{"six":1}`), &c); err == nil {
		t.Fatalf("期望非法星级报错")
	}
}

func TestRatings_Validate(t *testing.T) {
	ok := Ratings{Stars: 4.5, Total: 10, Count: StarCounts{1, 1, 1, 2, 5}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	bad := []Ratings{
		{Stars: -0.1},
		{Stars: 5.01},
		{Stars: 3, Total: -1},
		{Stars: 3, Comments: Ptr(int64(-2))},
		{Stars: 3, Count: StarCounts{0, -1, 0, 0, 0}},
	}
	for i, r := range bad {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d：期望校验失败：%+v", i, r)
		}
	}
}

func TestItem_SparseJSON(t *testing.T) {
	it := Item{
		PackageName: "p",
		Title:       "T",
		Creator:     "C",
		ShareURL:    "https://x/p",
		CoverImage:  &CoverImage{Main: "m"},
	}
	b, err := json.Marshal(it)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	s := string(b)
	for _, k := range []string{"ratings", "images", "genres", "num_downloads", "description_html", "small", "large"} {
		if strings.Contains(s, `"`+k+`"`) {
			t.Fatalf("未提供的字段 %s 不应出现：%s", k, s)
		}
	}
	if !strings.Contains(s, `"cover_image":{"main":"m"}`) {
		t.Fatalf("cover_image 不符合预期：%s", s)
	}
}

func TestErrors_Predicates(t *testing.T) {
	var err error = &AuthError{Attempts: 2, Err: ErrTokenDecode}
	if !IsAuth(err) || IsNetwork(err) || IsMalformed(err) {
		t.Fatalf("谓词判断不符合预期：%v", err)
	}
	if !strings.Contains(err.Error(), "2") {
		t.Fatalf("错误信息应包含尝试次数：%v", err)
	}
	if !IsMalformed(&MalformedError{Source: "details", What: "title"}) {
		t.Fatalf("期望 IsMalformed")
	}
	if !IsNetwork(&NetworkError{Op: "fetch"}) {
		t.Fatalf("期望 IsNetwork")
	}
}
