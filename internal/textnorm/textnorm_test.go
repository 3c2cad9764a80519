package textnorm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses whitespace", in: "  맛있어요\n\n 또 올게요\t", want: "맛있어요 또 올게요"},
		{name: "drops boilerplate tail", in: "친절하고 깔끔해요 반응 남기기 좋아요 3", want: "친절하고 깔끔해요"},
		{name: "earliest marker wins", in: "국물이 진해요 더보기 방문일 2.15", want: "국물이 진해요"},
		{
			name: "strips reviewer meta prefix",
			in:   "먹보123 리뷰 45 · 사진 12 2번째 방문 · 점심에 방문 면이 쫄깃합니다",
			want: "면이 쫄깃합니다",
		},
		{name: "collapses pipe runs", in: "분위기 || | 좋음 | 가격 | | 적당", want: "분위기 | 좋음 | 가격 | 적당"},
		{name: "trims edge pipes", in: "| 좋아요 |", want: "좋아요"},
		{name: "keeps plain text", in: "Great coffee", want: "Great coffee"},
		{name: "only boilerplate", in: "더보기", want: ""},
		{name: "drops badge tail", in: "국물 최고 재방문 영수증 방문일 2.15.목", want: "국물 최고"},
		{name: "keeps revisit inside sentence", in: "음식이 맛있어서 재방문했어요 직원분들도 친절합니다", want: "음식이 맛있어서 재방문했어요 직원분들도 친절합니다"},
		{name: "keeps see more inside sentence", in: "The menu has more options, See more photos inside the store", want: "The menu has more options, See more photos inside the store"},
		{name: "keeps leading receipt word", in: "영수증 이벤트 없어도 또 갈 집, 국물 최고", want: "영수증 이벤트 없어도 또 갈 집, 국물 최고"},
		{name: "keeps visit date word", in: "방문일 기준으로 웨이팅 30분 있었어요", want: "방문일 기준으로 웨이팅 30분 있었어요"},
		{name: "keeps reservation phrase", in: "예약 후 이용했는데 자리가 넉넉했어요", want: "예약 후 이용했는데 자리가 넉넉했어요"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"   ",
		"a || b",
		"| | |",
		"닉1 1번째 방문 저녁 닉2 3번째 방문 아침에 방문 내용",
		"좋아요 | | 더보기 | 반응 남기기",
		"x  y  | |z",
		"Show more Great coffee",
		"방문 5회 점심 Great",
		"재방문 의사 100% 더보기",
		"좋아요 영수증 3.2 | 더보기",
	}
	for _, in := range inputs {
		once := Clean(in)
		require.Equal(t, once, Clean(once), "input %q", in)
	}
}

func TestCleanOrRawFallsBackToRaw(t *testing.T) {
	t.Parallel()

	require.Equal(t, "더보기", CleanOrRaw("  더보기 "))
	require.Equal(t, "좋아요", CleanOrRaw("좋아요 더보기"))
}
