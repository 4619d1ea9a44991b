package weather

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/slice"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Coordinate is a weather sample point of the coordinate store.
type Coordinate struct {
	ID    int
	Point orb.Point
}

func (c Coordinate) Latitude() float64 {
	return c.Point.Lat()
}

func (c Coordinate) Longitude() float64 {
	return c.Point.Lon()
}

func (c Coordinate) WKT() string {
	return wkt.MarshalString(c.Point)
}

func ParseCoordinate(id int, geometry string) (Coordinate, error) {
	p, err := wkt.UnmarshalPoint(strings.TrimSpace(geometry))
	if err != nil {
		return Coordinate{}, fmt.Errorf("coordinate %d: invalid point %q: %w", id, geometry, err)
	}
	return Coordinate{ID: id, Point: p}, nil
}

// OrderScenarios sorts the peripheral coordinates by id and puts the central one last.
func OrderScenarios(coords []Coordinate, centralID int) ([]Coordinate, error) {
	central, ok := slice.Find(coords, func(c Coordinate) bool { return c.ID == centralID })
	if !ok {
		return nil, etlerr.Configuration("order scenarios", "central scenario %d is not in the coordinate store", centralID)
	}

	ordered := make([]Coordinate, 0, len(coords))
	for _, c := range coords {
		if c.ID != centralID {
			ordered = append(ordered, c)
		}
	}
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].ID < ordered[b].ID })
	return append(ordered, central), nil
}

// ReadCoordinates reads "id" and "geometry" (WKT point) columns of a delimited file
// with a header row.
func ReadCoordinates(r io.Reader, sep rune) ([]Coordinate, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idCol, geomCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "id":
			idCol = i
		case "geometry":
			geomCol = i
		}
	}
	if idCol < 0 || geomCol < 0 {
		return nil, etlerr.SchemaMismatch("read coordinates", "header %v lacks id or geometry", header)
	}

	var coords []Coordinate
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}
		id, err := strconv.Atoi(strings.TrimSpace(fields[idCol]))
		if err != nil {
			return nil, etlerr.SchemaMismatch("read coordinates", "line %d: invalid id %q", line, fields[idCol])
		}
		c, err := ParseCoordinate(id, fields[geomCol])
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}
	return coords, nil
}
