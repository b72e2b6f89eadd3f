package serial

import (
	"fmt"
	"strings"
	"time"

	"git.fiblab.net/sim/streetcover/planner"
)

// XML转义，仅处理五个保留字符
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// 输出GPX 1.1文档：单trk单trkseg，经纬度保留6位小数
// 输出格式为对外接口的一部分，按字节约定手工拼接
func WriteGPX(route *planner.SuggestedRoute, now time.Time) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<gpx version="1.1" creator="streetcover" xmlns="http://www.topografix.com/GPX/1/1">` + "\n")
	b.WriteString("  <metadata>\n")
	fmt.Fprintf(&b, "    <name>%s</name>\n", EscapeXML(route.Name))
	fmt.Fprintf(&b, "    <time>%s</time>\n", now.UTC().Format(time.RFC3339))
	b.WriteString("  </metadata>\n")
	b.WriteString("  <trk>\n")
	fmt.Fprintf(&b, "    <name>%s</name>\n", EscapeXML(route.Name))
	b.WriteString("    <trkseg>\n")
	for _, p := range route.Points {
		fmt.Fprintf(&b, `      <trkpt lat="%.6f" lon="%.6f"/>`+"\n", p.Lat, p.Lon)
	}
	b.WriteString("    </trkseg>\n")
	b.WriteString("  </trk>\n")
	b.WriteString("</gpx>\n")
	return []byte(b.String())
}

// 输出AML文档：metadata含名称、创建时间、里程（3位小数）与完成结点数，
// route为1起始下标的point列表
func WriteAML(route *planner.SuggestedRoute, now time.Time) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<aml version="1.0">` + "\n")
	b.WriteString("  <metadata>\n")
	fmt.Fprintf(&b, "    <name>%s</name>\n", EscapeXML(route.Name))
	fmt.Fprintf(&b, "    <created>%s</created>\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "    <distance_km>%.3f</distance_km>\n", route.DistanceKm)
	fmt.Fprintf(&b, "    <nodes_completed>%d</nodes_completed>\n", len(route.NodeIDsCovered))
	b.WriteString("  </metadata>\n")
	b.WriteString("  <route>\n")
	for i, p := range route.Points {
		fmt.Fprintf(&b, `    <point idx="%d" lat="%.6f" lon="%.6f"/>`+"\n", i+1, p.Lat, p.Lon)
	}
	b.WriteString("  </route>\n")
	b.WriteString("</aml>\n")
	return []byte(b.String())
}
