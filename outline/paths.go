package outline

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// extractPaths 从 SVG 字符串中提取所有层级 <path> 的 d 属性
func extractPaths(svg string) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(svg))
	dec.Strict = false
	var paths []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return paths, nil
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "path" {
			continue
		}
		for _, attr := range se.Attr {
			if attr.Name.Local == "d" && strings.TrimSpace(attr.Value) != "" {
				paths = append(paths, strings.TrimSpace(attr.Value))
			}
		}
	}
}

var (
	pathTokenRe   = regexp.MustCompile(`-?[0-9]*\.?[0-9]+(?:e[-+]?\d+)?|[MLHVCSQTAZmlhvcsqtaz]|[\s,]+`)
	pathCommandRe = regexp.MustCompile(`^[MLHVCSQTAZmlhvcsqtaz]$`)
)

// FlipSvgPath mirrors path data vertically inside a box of height h, turning
// y-down image coordinates into y-up engine coordinates.
func FlipSvgPath(d string, h int) string {
	var (
		output  []string
		command string
		params  []float64
	)

	flush := func() {
		if len(params) == 0 {
			return
		}
		size := groupSize(command)
		if size == 0 {
			size = len(params)
		}
		for i := 0; i < len(params); i += size {
			group := flipGroup(command, params[i:min(i+size, len(params))], float64(h))
			strs := make([]string, len(group))
			for j, v := range group {
				strs[j] = strconv.FormatFloat(v, 'f', -1, 64)
			}
			output = append(output, strings.Join(strs, " "))
		}
		params = nil
	}

	for _, token := range pathTokenRe.FindAllString(d, -1) {
		t := strings.TrimSpace(token)
		if t == "" || t == "," {
			continue
		}
		if pathCommandRe.MatchString(t) {
			flush()
			command = t
			output = append(output, t)
			continue
		}
		num, _ := strconv.ParseFloat(t, 64)
		params = append(params, num)
	}
	flush()

	return strings.Join(output, " ")
}

func groupSize(cmd string) int {
	switch strings.ToUpper(cmd) {
	case "H", "V":
		return 1
	case "M", "L", "T":
		return 2
	case "S", "Q":
		return 4
	case "C":
		return 6
	case "A":
		return 7
	default:
		return 0
	}
}

// flipGroup negates relative y offsets and mirrors absolute y values.
func flipGroup(cmd string, group []float64, h float64) []float64 {
	abs := cmd == strings.ToUpper(cmd)
	flipY := func(v float64) float64 {
		if abs {
			return h - v
		}
		return -v
	}

	res := append([]float64(nil), group...)
	switch strings.ToUpper(cmd) {
	case "H":
		return res
	case "V":
		res[0] = flipY(res[0])
		return res
	case "A":
		// rx ry rotation large-arc sweep x y: the sweep flag inverts with the y axis
		if len(res) == 7 {
			res[4] = 1 - res[4]
			res[6] = flipY(res[6])
		}
		return res
	default:
		for i := 1; i < len(res); i += 2 {
			res[i] = flipY(res[i])
		}
		return res
	}
}
