package rename

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// FallbackTitle 在标题清洗后为空时兜底。
	FallbackTitle = "标题"
	// MaxTitleRunes 是标题在文件名中允许的最大字符数（按 rune 计）。
	MaxTitleRunes = 80
)

// SanitizeTitle 把标题清洗成可以安全进入文件名的片段：
// - 零宽空格与控制字符、Windows 保留字符（<>:"/\|?*）替换为空格
// - 连续空白折叠为单个空格
// - 去掉首尾的空格与点
// - 结果为空时兜底为 FallbackTitle；超长时截断到 MaxTitleRunes
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case r == '\u200b': // 零宽空格
			b.WriteByte(' ')
		case r < 0x20 || r == 0x7f:
			b.WriteByte(' ')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	cleaned = strings.Trim(cleaned, " .")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return FallbackTitle
	}

	r := []rune(cleaned)
	if len(r) > MaxTitleRunes {
		cleaned = strings.TrimRight(string(r[:MaxTitleRunes]), " ")
	}
	return cleaned
}

// BuildTarget 由序号 + 标题组合出目标路径（与源文件同目录、同扩展名）：
// <index 补零到 padding 位>-<清洗后标题><原扩展名>
func BuildTarget(srcPath string, index, padding int, title string) string {
	if padding < 1 {
		padding = 1
	}
	ext := filepath.Ext(srcPath)
	name := fmt.Sprintf("%0*d-%s%s", padding, index, SanitizeTitle(title), ext)
	return filepath.Join(filepath.Dir(srcPath), name)
}

// ResolveConflict 返回一个当前不存在的目标路径：
// target 不存在时原样返回；否则在扩展名前追加 _2、_3、… 直到找到空位。
// ignorePath 非空且等于 target 时直接放行（自我重命名场景）。
//
// 纯粹基于调用时刻的文件系统状态；同一目录内的并发重命名由
// “批处理单线程”这一上层契约保证不会发生。
func ResolveConflict(target, ignorePath string) string {
	if ignorePath != "" && target == ignorePath {
		return target
	}
	if !exists(target) {
		return target
	}

	dir := filepath.Dir(target)
	base := filepath.Base(target)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for counter := 2; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if !exists(candidate) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
