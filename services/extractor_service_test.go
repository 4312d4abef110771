package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsm0000/al-muallim-bot/models"
)

func TestSplitOversizedPagesKeepsShortPages(t *testing.T) {
	pages := []models.CurriculumPage{
		{PageNum: 1, Text: "قصير"},
		{PageNum: 2, Text: "قصير أيضاً"},
	}

	out, err := SplitOversizedPages(pages, 1000)
	require.NoError(t, err)

	assert.Equal(t, pages[0].Text, out[0].Text)
	assert.Equal(t, pages[1].Text, out[1].Text)
	assert.Equal(t, []int{1, 2}, pageNums(out))
}

func TestSplitOversizedPagesRenumbersChunks(t *testing.T) {
	long := strings.Repeat("كلمة ", 200)
	pages := []models.CurriculumPage{
		{PageNum: 1, Text: "قصير"},
		{PageNum: 2, Text: long},
		{PageNum: 3, Text: "خاتمة"},
	}

	out, err := SplitOversizedPages(pages, 100)
	require.NoError(t, err)

	require.Greater(t, len(out), 3, "the long page must split into several chunks")
	nums := pageNums(out)
	for i := 1; i < len(nums); i++ {
		assert.Equal(t, nums[i-1]+1, nums[i], "page numbers stay strictly increasing")
	}
	assert.Equal(t, "قصير", out[0].Text)
	assert.Equal(t, "خاتمة", out[len(out)-1].Text)
}

func pageNums(pages []models.CurriculumPage) []int {
	nums := make([]int, len(pages))
	for i, p := range pages {
		nums[i] = p.PageNum
	}
	return nums
}
