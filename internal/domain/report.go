package domain

import "time"

// RunReport 是对外稳定输出（report JSON / stdout JSON）的结构。
type RunReport struct {
	Dir    string `json:"dir"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary Summary      `json:"summary"`
	Items   []ItemReport `json:"items"`
}

// ItemReport 是单条视频的最终结果（顺序与扫描顺序一致）。
type ItemReport struct {
	Src      string `json:"src"`
	Title    string `json:"title,omitempty"`
	NewName  string `json:"new_name,omitempty"`
	Status   string `json:"status"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 items 计算得出（未进入终态的条目按 cancelled 计）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	s := Summary{Total: len(r.Items)}
	for _, it := range r.Items {
		switch it.Status {
		case StatusDone:
			s.Done++
		case StatusPreviewed:
			s.Previewed++
		case StatusFailed:
			s.Failed++
		default:
			s.Cancelled++
		}
	}
	r.Summary = s
}
