package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // 注册 GIF 解码器
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器（输入不一定总是 jpeg）
)

// DefaultMaxBytes 是识别服务单次上传的大小上限（4.5 MiB）。
const DefaultMaxBytes = 4_718_592

const (
	jpegQuality = 85
	maxHalvings = 6
)

// TooLargeError 表示即使缩小后仍无法降到上限以下（或格式无法解码）。
type TooLargeError struct {
	Size  int
	Limit int
	Err   error
}

func (e *TooLargeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("图片过大（%d 字节，上限 %d）且无法压缩：%v", e.Size, e.Limit, e.Err)
	}
	return fmt.Sprintf("图片过大（%d 字节，上限 %d）", e.Size, e.Limit)
}

func (e *TooLargeError) Unwrap() error { return e.Err }

// FitJPEG 让图片不超过 maxBytes。
//
// 规则：
// - 已在上限内：原样返回（mime 不变）
// - 否则解码后重新编码为 JPEG；仍超限则每次把宽高减半再编码，最多 6 次
// - 输出 mime 固定为 image/jpeg
func FitJPEG(data []byte, mime string, maxBytes int) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("图片为空")
	}
	if maxBytes <= 0 || len(data) <= maxBytes {
		return data, mime, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &TooLargeError{Size: len(data), Limit: maxBytes, Err: err}
	}

	for i := 0; i <= maxHalvings; i++ {
		out, err := encodeJPEG(img)
		if err != nil {
			return nil, "", err
		}
		if len(out) <= maxBytes {
			return out, "image/jpeg", nil
		}
		b := img.Bounds()
		if b.Dx() < 2 || b.Dy() < 2 {
			break
		}
		img = halve(img)
	}
	return nil, "", &TooLargeError{Size: len(data), Limit: maxBytes}
}

func encodeJPEG(img image.Image) ([]byte, error) {
	// JPEG 不支持透明通道：先铺白底。
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// halve 以 2x2 均值把宽高各减半（奇数边舍去最后一行/列）。
func halve(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx()/2, b.Dy()/2
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, bl, a uint32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					cr, cg, cb, ca := img.At(b.Min.X+2*x+dx, b.Min.Y+2*y+dy).RGBA()
					r, g, bl, a = r+cr, g+cg, bl+cb, a+ca
				}
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: uint8(r / 4 >> 8),
				G: uint8(g / 4 >> 8),
				B: uint8(bl / 4 >> 8),
				A: uint8(a / 4 >> 8),
			})
		}
	}
	return dst
}
