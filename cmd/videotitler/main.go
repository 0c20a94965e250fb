package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/expliyh/VideoTitler/internal/config"
	"github.com/expliyh/VideoTitler/internal/domain"
	"github.com/expliyh/VideoTitler/internal/frame"
	"github.com/expliyh/VideoTitler/internal/infra/fsx"
	"github.com/expliyh/VideoTitler/internal/ocr"
	"github.com/expliyh/VideoTitler/internal/pipeline"
	"github.com/expliyh/VideoTitler/internal/scan"
	"github.com/expliyh/VideoTitler/internal/title"
)

// ReportFileName 是 apply 模式下写入视频目录的运行报告文件名。
const ReportFileName = "videotitler-report.json"

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cfgPath := filepath.Join(cwd, config.DefaultFileName)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	config.ApplyEnv(&cfg)
	ra.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置无效：%v\n", err)
		return 2
	}

	// 配置回写（save_keys_locally=false 时密钥不落盘）；失败不致命。
	cfg.TouchRecentDir(cfg.InputDir)
	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "保存配置失败：%v\n", err)
	}

	eff := cfg.Snapshot()

	paths, err := scan.Videos(eff.InputDir, eff.IncludeSubdirs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "扫描失败：%v\n", err)
		return 1
	}

	extractor, err := frame.NewExtractor()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	ocrClient := ocr.New(eff.BaiduAPIKey, eff.BaiduSecretKey)
	titleClient := title.New(eff.DeepSeekAPIKey, eff.DeepSeekBaseURL, eff.DeepSeekModel,
		eff.SystemPrompt, eff.UserPromptTemplate)

	runner := pipeline.New(eff, paths, extractor, ocrClient, titleClient)

	// Ctrl-C 协作式取消：当前条目处理完后停止，不打断进行中的阶段。
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "已请求停止（将在当前文件处理完后停止）…")
		runner.Stop()
		signal.Stop(sigCh)
	}()

	ui := newProgressUI(os.Stderr, eff, len(paths))
	ui.OnStart()

	// worker 在后台串行处理，事件在前台阻塞消费（唯一生产者/唯一消费者）。
	reportCh := make(chan domain.RunReport, 1)
	go func() { reportCh <- runner.Run(context.Background()) }()
	for ev := range runner.Events() {
		ui.Handle(ev)
	}
	rr := <-reportCh

	if !eff.DryRun {
		if err := writeReportFile(eff.InputDir, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 %s 失败：%v\n", ReportFileName, err)
		}
	}

	emitReport(rr)
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

// runArgs 是 CLI 暴露的参数，保留“是否显式指定”的信息以实现覆盖优先级。
type runArgs struct {
	Dir string

	Frame    int
	FrameSet bool

	Start    int
	StartSet bool

	Padding    int
	PaddingSet bool

	Recursive    bool
	RecursiveSet bool

	OcrMode    string
	OcrModeSet bool

	Apply    bool
	ApplySet bool
}

// apply 把显式指定的 CLI 参数覆盖到配置上（CLI > config.json > 默认）。
func (ra runArgs) apply(cfg *config.AppConfig) {
	if strings.TrimSpace(ra.Dir) != "" {
		cfg.InputDir = ra.Dir
	}
	if ra.FrameSet {
		cfg.FrameNumber = ra.Frame
	}
	if ra.StartSet {
		cfg.StartIndex = ra.Start
	}
	if ra.PaddingSet {
		cfg.IndexPadding = ra.Padding
	}
	if ra.RecursiveSet {
		cfg.IncludeSubdirs = ra.Recursive
	}
	if ra.OcrModeSet {
		cfg.BaiduOcrMode = ra.OcrMode
	}
	if ra.ApplySet {
		cfg.DryRun = !ra.Apply
	}
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	intValue := func(name, v string) (int, error) {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s 需要整数值，实际是 %q", name, v)
		}
		return n, nil
	}

	take := func(i *int, name string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--frame":
			v, err := take(&i, a)
			if err != nil {
				return runArgs{}, err
			}
			n, err := intValue("--frame", v)
			if err != nil {
				return runArgs{}, err
			}
			ra.Frame, ra.FrameSet = n, true
		case a == "--start":
			v, err := take(&i, a)
			if err != nil {
				return runArgs{}, err
			}
			n, err := intValue("--start", v)
			if err != nil {
				return runArgs{}, err
			}
			ra.Start, ra.StartSet = n, true
		case a == "--padding":
			v, err := take(&i, a)
			if err != nil {
				return runArgs{}, err
			}
			n, err := intValue("--padding", v)
			if err != nil {
				return runArgs{}, err
			}
			ra.Padding, ra.PaddingSet = n, true
		case a == "--ocr":
			v, err := take(&i, a)
			if err != nil {
				return runArgs{}, err
			}
			ra.OcrMode, ra.OcrModeSet = v, true
		case a == "--recursive":
			ra.Recursive, ra.RecursiveSet = true, true
		case strings.HasPrefix(a, "--recursive="):
			b, err := boolValue("--recursive", strings.TrimPrefix(a, "--recursive="))
			if err != nil {
				return runArgs{}, err
			}
			ra.Recursive, ra.RecursiveSet = b, true
		case a == "--apply":
			ra.Apply, ra.ApplySet = true, true
		case strings.HasPrefix(a, "--apply="):
			b, err := boolValue("--apply", strings.TrimPrefix(a, "--apply="))
			if err != nil {
				return runArgs{}, err
			}
			ra.Apply, ra.ApplySet = b, true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Dir != "" {
				return runArgs{}, fmt.Errorf("重复的目录参数：%q 与 %q", ra.Dir, a)
			}
			ra.Dir = a
		}
	}
	return ra, nil
}

func boolValue(name, v string) (bool, error) {
	switch v {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%s 只能是 true 或 false，实际是 %q", name, v)
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  videotitler run [dir] [--frame N] [--start N] [--padding N] [--recursive] [--ocr accurate|general] [--apply[=true|false]]

命令：
  run    扫描目录并逐条处理：抽帧 -> OCR -> 标题提炼 -> 重命名（默认按配置，--apply 强制落盘）

使用 "videotitler run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  videotitler run [dir] [--frame N] [--start N] [--padding N] [--recursive] [--ocr accurate|general] [--apply[=true|false]]

参数：
  dir          视频目录（未指定则读 config.json 的 input_dir）
  --frame      抽取第 N 帧（1 起始；默认 1）
  --start      重命名起始序号（默认 1）
  --padding    序号补零位数（1..8，默认 3）
  --recursive  包含子目录
  --ocr        OCR 模式：accurate（高精度）或 general（通用）
  --apply      执行重命名；--apply=false 强制 dry-run（仅预览）
  -h, --help   显示帮助

密钥从 config.json 或环境变量读取：BAIDU_API_KEY、BAIDU_SECRET_KEY、DEEPSEEK_API_KEY。
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：done=%d previewed=%d failed=%d cancelled=%d\n",
			rr.Summary.Done, rr.Summary.Previewed, rr.Summary.Failed, rr.Summary.Cancelled,
		)
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（过程信息走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：done=%d previewed=%d failed=%d cancelled=%d\n",
		rr.Summary.Done, rr.Summary.Previewed, rr.Summary.Failed, rr.Summary.Cancelled,
	)
}

func writeReportFile(dir string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(dir, ReportFileName, b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
