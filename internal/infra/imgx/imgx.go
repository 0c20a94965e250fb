package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器（抽帧输出为 PNG）

	xdraw "golang.org/x/image/draw"
)

// ShrinkJPEG 把图片约束到“长边 <= maxSide”，并重编码为 JPEG。
//
// 约束：
// - 输入允许是 PNG/JPEG（依赖标准库解码器）
// - 尺寸已达标时不缩放，只做 JPEG 重编码（体积仍可能显著下降）
// - 是否采用结果由调用方决定（OCR 上传只在“严格更小”时替换原图）
func ShrinkJPEG(src []byte, maxSide, quality int) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.New("图片为空")
	}
	if maxSide < 1 {
		return nil, errors.New("maxSide 必须 >= 1")
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	if w > maxSide || h > maxSide {
		// 等比缩小到长边 == maxSide（向下取整，至少 1px）。
		nw, nh := w, h
		if w >= h {
			nw = maxSide
			nh = h * maxSide / w
		} else {
			nh = maxSide
			nw = w * maxSide / h
		}
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}

		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
		img = dst
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
