package rgba

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
)

// toNRGBA copies the buffer into the layout the stdlib encoders handle
// byte-for-byte, keeping straight alpha so fully transparent pixels round
// trip with their color channels intact.
func (img *Image) toNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < img.Width; x++ {
			p := img.Pix[y*img.Width+x]
			row[x*4] = p.Red()
			row[x*4+1] = p.Green()
			row[x*4+2] = p.Blue()
			row[x*4+3] = p.Alpha()
		}
	}
	return out
}

// ReadPNG loads a PNG file into a buffer.
func ReadPNG(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return FromImage(decoded), nil
}

// ReadJPEG loads a JPEG file into a buffer.
func ReadJPEG(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	decoded, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return FromImage(decoded), nil
}

// writeAtomic writes through <path>.tmp, syncs, and renames into place so a
// crashed or cancelled run never leaves a truncated tile behind.
func writeAtomic(path string, encode func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// WritePNG writes the buffer as a PNG file, atomically.
func (img *Image) WritePNG(path string) error {
	return writeAtomic(path, func(w io.Writer) error {
		return png.Encode(w, img.toNRGBA())
	})
}

// WriteJPEG writes the buffer as a JPEG file, atomically. JPEG has no alpha,
// so pixels that are even slightly transparent are flattened onto the
// background color first.
func (img *Image) WriteJPEG(path string, quality int, background Pixel) error {
	flat := New(img.Width, img.Height)
	for i, p := range img.Pix {
		if p.Alpha() < 250 {
			p = Blend(background, p)
		}
		flat.Pix[i] = p | 0xff000000
	}
	return writeAtomic(path, func(w io.Writer) error {
		return jpeg.Encode(w, flat.toNRGBA(), &jpeg.Options{Quality: quality})
	})
}
