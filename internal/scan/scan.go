package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/expliyh/VideoTitler/internal/domain"
)

// 识别的视频扩展名（匹配不区分大小写）。
var videoExts = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".mkv":  {},
	".avi":  {},
	".webm": {},
	".m4v":  {},
}

// Videos 扫描 root 下的视频文件，按文件名的自然顺序返回绝对路径。
//
// 规则（硬约束）：
// - recursive=false 只看 root 一层；true 则递归全部子目录
// - 扩展名匹配不区分大小写
// - 排序只看文件名（不含目录），数字串按数值比较
// - 列目录与 stat 之间消失的条目直接跳过（容忍并发删除）
func Videos(root string, recursive bool) ([]string, error) {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		return nil, domain.E(domain.ErrKindIOFailed, "目录不可用："+root, err)
	}

	var files []string
	if recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				// 遍历途中消失/不可读的条目：跳过（目录则整体跳过）。
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if isVideo(d.Name()) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, domain.E(domain.ErrKindIOFailed, "扫描失败："+root, err)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, domain.E(domain.ErrKindIOFailed, "读取目录失败："+root, err)
		}
		for _, e := range entries {
			if e.IsDir() || !isVideo(e.Name()) {
				continue
			}
			path := filepath.Join(root, e.Name())
			if _, err := os.Stat(path); err != nil {
				// 列目录后被删除：静默跳过。
				continue
			}
			files = append(files, path)
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		return NaturalLess(filepath.Base(files[i]), filepath.Base(files[j]))
	})
	return files, nil
}

func isVideo(name string) bool {
	_, ok := videoExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// NaturalLess 按“自然顺序”比较两个文件名：
// 文件名被拆成 非数字串/数字串 交替的片段，数字片段按数值比较，
// 非数字片段按不区分大小写的字典序比较；前缀一致时片段少者在前。
func NaturalLess(a, b string) bool {
	ra := splitRuns(a)
	rb := splitRuns(b)

	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	for i := 0; i < n; i++ {
		x, y := ra[i], rb[i]
		var c int
		if x.digits && y.digits {
			c = compareNumeric(x.s, y.s)
		} else {
			c = strings.Compare(strings.ToLower(x.s), strings.ToLower(y.s))
		}
		if c != 0 {
			return c < 0
		}
	}
	return len(ra) < len(rb)
}

type run struct {
	s      string
	digits bool
}

// splitRuns 把字符串拆成交替的片段，保证首片段是非数字串（可能为空），
// 从而两侧对应片段类型总是一致。
func splitRuns(s string) []run {
	runs := make([]run, 0, 8)
	start := 0
	cur := false // 当前片段是否数字串
	runs = append(runs, run{})

	flush := func(end int) {
		runs[len(runs)-1] = run{s: s[start:end], digits: cur}
	}

	for i, r := range s {
		d := r >= '0' && r <= '9'
		if d != cur {
			flush(i)
			runs = append(runs, run{})
			start = i
			cur = d
		}
	}
	flush(len(s))
	return runs
}

// compareNumeric 比较两个十进制数字串的数值大小（不限位数，不会溢出）。
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
