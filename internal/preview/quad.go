package preview

import (
	"image"
	"image/draw"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Quad is a textured rectangle spanning the canvas, (0,0) to (w,h) in canvas
// pixels.
type Quad struct {
	vao, vbo, texture uint32
	w, h              int
}

// NewQuad allocates the vertex buffers and texture.
func NewQuad() *Quad {
	q := &Quad{}
	gl.GenVertexArrays(1, &q.vao)
	gl.GenBuffers(1, &q.vbo)
	gl.BindVertexArray(q.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, q.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 6*4*4, nil, gl.DYNAMIC_DRAW)

	const stride = 4 * 4 // x, y, u, v
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, stride, 2*4)
	gl.EnableVertexAttribArray(1)

	gl.GenTextures(1, &q.texture)
	gl.BindTexture(gl.TEXTURE_2D, q.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	return q
}

// Upload replaces the texture with img and resizes the quad to match.
func (q *Quad) Upload(img image.Image) {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	q.w, q.h = b.Dx(), b.Dy()
	if q.w == 0 || q.h == 0 {
		return
	}

	gl.BindTexture(gl.TEXTURE_2D, q.texture)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(q.w), int32(q.h), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))

	w, h := float32(q.w), float32(q.h)
	vertices := []float32{
		0, 0, 0, 0,
		w, 0, 1, 0,
		w, h, 1, 1,
		0, 0, 0, 0,
		w, h, 1, 1,
		0, h, 0, 1,
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, q.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(vertices)*4, gl.Ptr(vertices))
}

// Size returns the uploaded image size.
func (q *Quad) Size() (int, int) { return q.w, q.h }

// Draw issues the draw call.
func (q *Quad) Draw() {
	if q.w == 0 || q.h == 0 {
		return
	}
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, q.texture)
	gl.BindVertexArray(q.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
}

// Delete releases the GL objects.
func (q *Quad) Delete() {
	gl.DeleteTextures(1, &q.texture)
	gl.DeleteBuffers(1, &q.vbo)
	gl.DeleteVertexArrays(1, &q.vao)
}
