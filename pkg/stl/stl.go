// Package stl reads and writes triangulated surfaces in the STL format and
// converts them to and from geometry meshes.
package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"facemetrics/pkg/geometry"
)

// Triangle represents a triangle in 3D space
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

const headerSize = 80

// ErrFormat is returned for files that are neither binary nor ASCII STL.
var ErrFormat = errors.New("malformed STL")

// SaveToSTL writes triangles to a binary STL file
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := Write(file, triangles); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Write encodes triangles as binary STL.
func Write(w io.Writer, triangles []Triangle) error {
	bw := bufio.NewWriter(w)
	header := make([]byte, headerSize)
	copy(header, "facemetrics")
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return err
	}
	for _, t := range triangles {
		if err := binary.Write(bw, binary.LittleEndian, t); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(0)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads a binary or ASCII STL file
func Load(filename string) ([]Triangle, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading STL file: %w", err)
	}
	tris, err := Read(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return tris, nil
}

// Read decodes STL data. A body whose size matches the triangle count in
// the header is binary, even if it starts with "solid".
func Read(data []byte) ([]Triangle, error) {
	if len(data) >= headerSize+4 {
		n := binary.LittleEndian.Uint32(data[headerSize:])
		if int64(len(data)) == headerSize+4+int64(n)*50 {
			return readBinary(data[headerSize+4:], int(n))
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")) {
		return readASCII(data)
	}
	return nil, ErrFormat
}

func readBinary(body []byte, n int) ([]Triangle, error) {
	tris := make([]Triangle, n)
	r := bytes.NewReader(body)
	for i := range tris {
		if err := binary.Read(r, binary.LittleEndian, &tris[i]); err != nil {
			return nil, fmt.Errorf("%w: triangle %d: %v", ErrFormat, i, err)
		}
		var attr uint16
		if err := binary.Read(r, binary.LittleEndian, &attr); err != nil {
			return nil, fmt.Errorf("%w: triangle %d: %v", ErrFormat, i, err)
		}
	}
	return tris, nil
}

func readASCII(data []byte) ([]Triangle, error) {
	var tris []Triangle
	var cur Triangle
	nv := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "facet":
			if len(fields) != 5 || fields[1] != "normal" {
				return nil, fmt.Errorf("%w: line %d: bad facet", ErrFormat, line)
			}
			v, err := parseVec(fields[2:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
			}
			cur, nv = Triangle{Normal: v}, 0
		case "vertex":
			if len(fields) != 4 || nv > 2 {
				return nil, fmt.Errorf("%w: line %d: bad vertex", ErrFormat, line)
			}
			v, err := parseVec(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
			}
			switch nv {
			case 0:
				cur.Vertex1 = v
			case 1:
				cur.Vertex2 = v
			case 2:
				cur.Vertex3 = v
			}
			nv++
		case "endfacet":
			if nv != 3 {
				return nil, fmt.Errorf("%w: line %d: facet has %d vertices", ErrFormat, line, nv)
			}
			tris = append(tris, cur)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return tris, nil
}

func parseVec(fields []string) ([3]float32, error) {
	var v [3]float32
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(x)
	}
	return v, nil
}

// ToMesh joins triangles into a mesh, merging vertices at identical
// positions.
func ToMesh(triangles []Triangle) *geometry.Mesh {
	index := map[[3]float32]int{}
	var verts []r3.Vec
	vertex := func(p [3]float32) int {
		if i, ok := index[p]; ok {
			return i
		}
		i := len(verts)
		index[p] = i
		verts = append(verts, r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])})
		return i
	}
	faces := make([][3]int, len(triangles))
	for i, t := range triangles {
		faces[i] = [3]int{vertex(t.Vertex1), vertex(t.Vertex2), vertex(t.Vertex3)}
	}
	return geometry.NewMesh(verts, faces)
}

// FromMesh converts a mesh to triangles with unit normals from the vertex
// winding.
func FromMesh(m *geometry.Mesh) []Triangle {
	tris := make([]Triangle, 0, len(m.Faces))
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		if l := r3.Norm(n); l > 0 && !math.IsInf(l, 0) {
			n = r3.Scale(1/l, n)
		}
		tris = append(tris, Triangle{Normal: f32(n), Vertex1: f32(a), Vertex2: f32(b), Vertex3: f32(c)})
	}
	return tris
}

func f32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
