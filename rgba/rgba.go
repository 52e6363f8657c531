// Package rgba implements the packed 32-bit image buffer the tile pipeline
// renders into. Pixels are stored row-major with red in the low byte and
// alpha in the high byte, so fully transparent is <= 0xffffff and fully
// opaque is >= 0xff000000, which keeps the hot blending paths branch-cheap.
package rgba

import (
	"image"
	"image/color"
)

// Pixel is a packed RGBA color: R in bits 0-7, G in 8-15, B in 16-23, A in 24-31.
type Pixel uint32

func NewPixel(r, g, b, a uint8) Pixel {
	return Pixel(uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24)
}

// FromColor converts any color.Color to a straight-alpha pixel.
func FromColor(c color.Color) Pixel {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return NewPixel(n.R, n.G, n.B, n.A)
}

func (p Pixel) Red() uint8   { return uint8(p) }
func (p Pixel) Green() uint8 { return uint8(p >> 8) }
func (p Pixel) Blue() uint8  { return uint8(p >> 16) }
func (p Pixel) Alpha() uint8 { return uint8(p >> 24) }

func (p Pixel) NRGBA() color.NRGBA {
	return color.NRGBA{R: p.Red(), G: p.Green(), B: p.Blue(), A: p.Alpha()}
}

// Multiply scales each channel by the matching factor over 255.
func (p Pixel) Multiply(r, g, b, a uint8) Pixel {
	return NewPixel(
		uint8(int(p.Red())*int(r)/255),
		uint8(int(p.Green())*int(g)/255),
		uint8(int(p.Blue())*int(b)/255),
		uint8(int(p.Alpha())*int(a)/255),
	)
}

func clampChannel(c int) uint8 {
	if c < 0 {
		return 0
	}
	if c > 255 {
		return 255
	}
	return uint8(c)
}

// AddClamp adds signed offsets to the color channels, saturating at 0/255.
// Alpha is left alone.
func (p Pixel) AddClamp(r, g, b int) Pixel {
	return NewPixel(
		clampChannel(int(p.Red())+r),
		clampChannel(int(p.Green())+g),
		clampChannel(int(p.Blue())+b),
		p.Alpha(),
	)
}

// Blend composites src over dst with fixed-point alpha arithmetic. The
// source alpha is lifted into 1..256 so channel blends span exactly
// 0x0000-0xffff and reduce to a truncating shift, no divisions.
func Blend(dst, src Pixel) Pixel {
	if src <= 0xffffff {
		// fully transparent source
		return dst
	}
	if src >= 0xff000000 || dst <= 0xffffff {
		// opaque source or blank destination
		return src
	}
	sa := uint64(src.Alpha()) + 1
	sainv := 257 - sa
	d := uint64(dst)
	s := uint64(src)
	// spread the three channels across a 64-bit word so one multiply
	// blends them all
	d = ((d << 16) & 0xff00000000) | ((d << 8) & 0xff0000) | (d & 0xff)
	s = ((s << 16) & 0xff00000000) | ((s << 8) & 0xff0000) | (s & 0xff)
	newrgb := s*sa + d*sainv
	if dst >= 0xff000000 {
		// translucent over opaque stays opaque
		return Pixel(0xff000000 | ((newrgb >> 24) & 0xff0000) | ((newrgb >> 16) & 0xff00) | ((newrgb >> 8) & 0xff))
	}
	dainv := 256 - uint64(dst.Alpha())
	newa := sainv * dainv // 1..0x10000
	newa = (newa - 1) >> 8
	newa = 255 - newa // preserves full opacity from either input
	return Pixel((newa << 24) | ((newrgb >> 24) & 0xff0000) | ((newrgb >> 16) & 0xff00) | ((newrgb >> 8) & 0xff))
}

// Image is a fixed-size pixel buffer. The zero value is empty; use New.
type Image struct {
	Width  int
	Height int
	Pix    []Pixel
}

func New(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]Pixel, width*height)}
}

// FromImage copies any stdlib image into a buffer, with fast paths for the
// layouts the png and jpeg decoders actually produce.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	img := New(bounds.Dx(), bounds.Dy())
	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < img.Height; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+img.Width*4]
			for x := 0; x < img.Width; x++ {
				img.Pix[y*img.Width+x] = NewPixel(row[x*4], row[x*4+1], row[x*4+2], row[x*4+3])
			}
		}
	default:
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				img.Pix[y*img.Width+x] = FromColor(src.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
	}
	return img
}

// image.Image so the stdlib codecs can encode buffers directly.

func (img *Image) ColorModel() color.Model { return color.NRGBAModel }

func (img *Image) Bounds() image.Rectangle { return image.Rect(0, 0, img.Width, img.Height) }

func (img *Image) At(x, y int) color.Color { return img.Pixel(x, y).NRGBA() }

// Pixel returns the pixel at (x, y), or 0 when out of bounds.
func (img *Image) Pixel(x, y int) Pixel {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return 0
	}
	return img.Pix[y*img.Width+x]
}

// SetPixel writes the pixel at (x, y); out of bounds writes are dropped.
func (img *Image) SetPixel(x, y int, p Pixel) {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return
	}
	img.Pix[y*img.Width+x] = p
}

// BlendPixel blends p over the pixel at (x, y).
func (img *Image) BlendPixel(x, y int, p Pixel) {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return
	}
	img.Pix[y*img.Width+x] = Blend(img.Pix[y*img.Width+x], p)
}

func (img *Image) Clear() {
	for i := range img.Pix {
		img.Pix[i] = 0
	}
}

// Fill sets the rectangle at (x, y) sized w*h to color p, clipped to the image.
func (img *Image) Fill(p Pixel, x, y, w, h int) {
	if x >= img.Width || y >= img.Height {
		return
	}
	dx := max(x, 0)
	for sx := max(0, -x); sx < w && dx < img.Width; sx, dx = sx+1, dx+1 {
		dy := max(y, 0)
		for sy := max(0, -y); sy < h && dy < img.Height; sy, dy = sy+1, dy+1 {
			img.Pix[dy*img.Width+dx] = p
		}
	}
}

// SimpleBlit copies src onto img at (x, y), skipping fully transparent
// source pixels but otherwise replacing instead of blending.
func (img *Image) SimpleBlit(src *Image, x, y int) {
	if x >= img.Width || y >= img.Height {
		return
	}
	for sx := max(0, -x); sx < src.Width && sx+x < img.Width; sx++ {
		for sy := max(0, -y); sy < src.Height && sy+y < img.Height; sy++ {
			p := src.Pix[sy*src.Width+sx]
			if p.Alpha() != 0 {
				img.Pix[(sy+y)*img.Width+(sx+x)] = p
			}
		}
	}
}

// AlphaBlit blends src over img at (x, y).
func (img *Image) AlphaBlit(src *Image, x, y int) {
	if x >= img.Width || y >= img.Height {
		return
	}
	for sx := max(0, -x); sx < src.Width && sx+x < img.Width; sx++ {
		for sy := max(0, -y); sy < src.Height && sy+y < img.Height; sy++ {
			di := (sy+y)*img.Width + (sx + x)
			img.Pix[di] = Blend(img.Pix[di], src.Pix[sy*src.Width+sx])
		}
	}
}

// Clip returns a copy of the w*h rectangle at (x, y); areas outside the
// source stay transparent.
func (img *Image) Clip(x, y, w, h int) *Image {
	out := New(w, h)
	for xx := 0; xx < w && xx+x < img.Width; xx++ {
		for yy := 0; yy < h && yy+y < img.Height; yy++ {
			out.SetPixel(xx, yy, img.Pixel(x+xx, y+yy))
		}
	}
	return out
}

// Colorize returns a copy with every pixel channel-multiplied by r/g/b/a.
func (img *Image) Colorize(r, g, b, a uint8) *Image {
	out := New(img.Width, img.Height)
	for i, p := range img.Pix {
		out.Pix[i] = p.Multiply(r, g, b, a)
	}
	return out
}

// Rotate returns the image turned clockwise by count quarter turns.
func (img *Image) Rotate(count int) *Image {
	count = ((count % 4) + 4) % 4
	switch count {
	case 0:
		out := New(img.Width, img.Height)
		copy(out.Pix, img.Pix)
		return out
	case 2:
		out := New(img.Width, img.Height)
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				out.Pix[y*out.Width+x] = img.Pix[(img.Height-y-1)*img.Width+(img.Width-x-1)]
			}
		}
		return out
	case 1:
		out := New(img.Height, img.Width)
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				out.Pix[y*out.Width+x] = img.Pix[(img.Height-x-1)*img.Width+y]
			}
		}
		return out
	default: // 3
		out := New(img.Height, img.Width)
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				out.Pix[y*out.Width+x] = img.Pix[x*img.Width+(img.Width-y-1)]
			}
		}
		return out
	}
}

// Flip returns a copy mirrored on the requested axes.
func (img *Image) Flip(flipX, flipY bool) *Image {
	out := New(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			xx, yy := x, y
			if flipX {
				xx = img.Width - x - 1
			}
			if flipY {
				yy = img.Height - y - 1
			}
			out.Pix[y*img.Width+x] = img.Pix[yy*img.Width+xx]
		}
	}
	return out
}

// Move returns a copy shifted by (dx, dy) within the same bounds; pixels
// shifted out are dropped, vacated pixels stay transparent.
func (img *Image) Move(dx, dy int) *Image {
	out := New(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			out.SetPixel(x+dx, y+dy, img.Pix[y*img.Width+x])
		}
	}
	return out
}
