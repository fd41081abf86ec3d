package storage

import (
	"path/filepath"
	"testing"

	"storyboard/internal/core/extract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const validContent = "分镜\t关键帧图片生成提示词\t图生视频提示词\n" +
	"分镜1\t竹林晨雾中的小径\t镜头缓慢前推\n" +
	"分镜2\t夜市摊位的暖光\t镜头环绕人物\n"

func TestSaveEmptyContent(t *testing.T) {
	res := NewService().Save("标题", "", t.TempDir())
	assert.False(t, res.Success)
	assert.False(t, res.NoRows)
	assert.Equal(t, "empty result content", res.Reason)
}

func TestSaveNoParsableRows(t *testing.T) {
	res := NewService().Save("标题", "这里没有任何镜头数据", t.TempDir())
	assert.False(t, res.Success)
	assert.True(t, res.NoRows)
	assert.Equal(t, "no valid storyboard rows in result", res.Reason)
}

func TestSaveWritesVerifiableWorkbook(t *testing.T) {
	root := t.TempDir()
	res := NewService().Save("测试视频 #tag", validContent, root)
	require.True(t, res.Success, res.Reason)

	// Sanitized title names both the subdirectory and the workbook
	assert.Equal(t, filepath.Join(root, "测试视频", "测试视频.xlsx"), res.OutputPath)

	f, err := excelize.OpenFile(res.OutputPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("分镜表")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{extract.HeaderShot, extract.HeaderKeyframe, extract.HeaderVideo}, rows[0])
	assert.Equal(t, "分镜1", rows[1][0])
	assert.Equal(t, "竹林晨雾中的小径", rows[1][1])
	assert.Equal(t, "镜头环绕人物", rows[2][2])
}

func TestSaveIsIdempotentPerTitle(t *testing.T) {
	root := t.TempDir()
	svc := NewService()

	first := svc.Save("重复标题", validContent, root)
	require.True(t, first.Success)
	second := svc.Save("重复标题", validContent, root)
	require.True(t, second.Success)
	assert.Equal(t, first.OutputPath, second.OutputPath)
}

func TestSaveUntitledFallsBackToTimestampedName(t *testing.T) {
	root := t.TempDir()
	res := NewService().Save("", validContent, root)
	require.True(t, res.Success)
	assert.Contains(t, res.OutputPath, "分析结果_")
}
