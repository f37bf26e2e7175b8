package emath

import(
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
	"gonum.org/v1/gonum/mat"
)

// A FloatGrid is a grid of floats, stored row-major. It backs the
// deformation fields: one value per output pixel.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

func (g1 *FloatGrid)NewFromThis() FloatGrid  { return NewFloatGrid(g1.Dx(), g1.Dy()) }
func (fg *FloatGrid)Set(x, y int, v float64) { fg.values[fg.stride*y + x] = v }
func (fg *FloatGrid)Get(x, y int) float64    { return fg.values[fg.stride*y + x] }
func (fg *FloatGrid)Dx() int                 { return fg.stride }
func (fg *FloatGrid)Dy() int {
	if fg.stride == 0 { return 0 }
	return len(fg.values) / fg.stride
}

// Row returns the values of row `y`; writes through to the grid. Each
// worker in a parallel fill owns its rows, so this needs no locking.
func (fg *FloatGrid)Row(y int) []float64 { return fg.values[fg.stride*y : fg.stride*(y+1)] }

func (g1 *FloatGrid)SameShape(g2 *FloatGrid) bool {
	return g1.Dx() == g2.Dx() && g1.Dy() == g2.Dy()
}

// ToDense copies the grid into a gonum matrix (rows == Dy, cols == Dx).
func (fg *FloatGrid)ToDense() *mat.Dense {
	vals := make([]float64, len(fg.values))
	copy(vals, fg.values)
	return mat.NewDense(fg.Dy(), fg.Dx(), vals)
}

// NewFloatGridFromDense is the inverse of ToDense.
func NewFloatGridFromDense(m mat.Matrix) FloatGrid {
	rows, cols := m.Dims()
	fg := NewFloatGrid(cols, rows)
	for y:=0; y<rows; y++ {
		for x:=0; x<cols; x++ {
			fg.Set(x, y, m.At(y, x))
		}
	}
	return fg
}

func (fg *FloatGrid)MinMax() (float64, float64) {
	min := math.MaxFloat64
	max := -1.0  * min

	for i:=0 ; i<len(fg.values) ; i++ {
		if fg.values[i] > max { max = fg.values[i] }
		if fg.values[i] < min { min = fg.values[i] }
	}
	return min, max
}

func (fg *FloatGrid)Stats() string {
	min, max := fg.MinMax()
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}]", fg.Dx(), fg.Dy(), min, max)
}

// ToImg saves a simple grayscale, based on the range of values in the grid, and gamma scaling the
// gray to look normal for human vision
func (fg *FloatGrid)ToImg(title, filename string) error {
	min, max := fg.MinMax()
	span := max - min
	if span == 0 { span = 1 }

	img := image.NewRGBA64(image.Rectangle{Max:image.Point{fg.Dx(), fg.Dy()}})
	for x:=0; x<fg.Dx(); x++ {
		for y:=0; y<fg.Dy(); y++ {
			lum := fg.Get(x,y)
			gray := GammaExpand_F64 (Clamp01((lum - min) / span))
			col := color.RGBA64{uint16(gray * 65535.0), uint16(gray * 65535.0), uint16(gray * 65535.0), 0xFFFF}
			img.Set(x, y, col)
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1,0,0)
	dc.DrawString(title, 20, 20)
	return dc.SavePNG(filename)
}
