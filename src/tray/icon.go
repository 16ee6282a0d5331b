package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log"
)

const iconSize = 32

var (
	bubbleFill = color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	dotFill    = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Icon returns the tray icon: a filled bubble with three menu dots, PNG encoded.
func Icon() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	c := float64(iconSize-1) / 2
	r := c - 1
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, bubbleFill)
			}
		}
	}
	for _, cx := range []int{9, 16, 23} {
		for y := 14; y < 18; y++ {
			for x := cx - 2; x < cx+2; x++ {
				img.SetNRGBA(x, y, dotFill)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Printf("tray: encode icon: %v", err)
		return nil
	}
	return buf.Bytes()
}
