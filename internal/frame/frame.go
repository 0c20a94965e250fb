package frame

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png" // ffmpeg 输出固定为 PNG
	"os/exec"
	"strings"
	"time"

	"github.com/expliyh/VideoTitler/internal/domain"
)

// Timeout 是单次 ffmpeg 调用的硬超时。
const Timeout = 60 * time.Second

// Extractor 负责通过 ffmpeg 从视频中抽取单帧。
// ffmpeg 路径在构造时解析一次（OS lookup），之后复用。
type Extractor struct {
	ffmpegPath string
}

// NewExtractor 解析 PATH 中的 ffmpeg；找不到时报 FrameExtractionFailed。
func NewExtractor() (*Extractor, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, domain.E(domain.ErrKindFrameExtraction, "未找到 ffmpeg：请先安装 ffmpeg 并加入 PATH", err)
	}
	return &Extractor{ffmpegPath: path}, nil
}

// Extract 抽取 videoPath 的第 frameNumber 帧（1 起始），返回 PNG 字节与解码后的图。
//
// 行为：
// - frameNumber < 1 => InvalidArgument
// - 主命令用 select 过滤器取 0 起始的第 frameNumber-1 帧
// - 主命令无输出（序号超出流长度等）时回退一次：seek 到流末尾前约 0.1s 取最后一帧。
//   注意这是近似行为：没有任何校验保证“最后一帧”对该视频有意义。
// - 超时/非零退出 => FrameExtractionFailed（附带捕获的 stderr）
// - PNG 解码失败 => FrameExtractionFailed（与子进程失败相区分）
func (e *Extractor) Extract(ctx context.Context, videoPath string, frameNumber int) ([]byte, image.Image, error) {
	if frameNumber < 1 {
		return nil, nil, domain.E(domain.ErrKindInvalidArgument, "帧序号必须是 >= 1 的整数", nil)
	}

	primary := e.buildArgs(videoPath, frameNumber-1, false)
	pngBytes, err := e.run(ctx, primary)
	if err != nil {
		return nil, nil, err
	}

	if len(pngBytes) == 0 {
		fallback := e.buildArgs(videoPath, 0, true)
		pngBytes, err = e.run(ctx, fallback)
		if err != nil {
			return nil, nil, err
		}
		if len(pngBytes) == 0 {
			return nil, nil, domain.E(domain.ErrKindFrameExtraction,
				fmt.Sprintf("读取帧失败：%s (frame=%d)", videoPath, frameNumber), nil)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, nil, domain.E(domain.ErrKindFrameExtraction, "PNG 解码失败（ffmpeg 输出异常）", err)
	}
	return pngBytes, img, nil
}

// buildArgs 组装 ffmpeg 参数（不含可执行文件本身）。
// lastFrame=true 时忽略 frameIndex，改取末尾帧。
func (e *Extractor) buildArgs(videoPath string, frameIndex int, lastFrame bool) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
	}
	if lastFrame {
		args = append(args, "-sseof", "-0.1")
	}
	args = append(args,
		"-i", videoPath,
		"-map", "0:v:0",
	)
	if !lastFrame {
		args = append(args, "-vf", fmt.Sprintf(`select=eq(n\,%d)`, frameIndex))
	}
	args = append(args,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	)
	return args
}

// run 执行一次 ffmpeg 调用：stdout 是图片字节，stderr 捕获进错误消息。
func (e *Extractor) run(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, domain.E(domain.ErrKindFrameExtraction, "ffmpeg 抽帧超时", ctx.Err())
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "未知错误"
		}
		return nil, domain.E(domain.ErrKindFrameExtraction, "ffmpeg 抽帧失败："+msg, err)
	}
	return stdout.Bytes(), nil
}
