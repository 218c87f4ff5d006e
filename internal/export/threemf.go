package export

import (
	"archive/zip"
	"encoding/xml"
	"os"
	"strconv"

	"cad-converter/internal/mesh"
)

// 3MF is a zip container holding an OPC relationship part, a content-types
// part, and the model XML.

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>
</Types>
`
	relsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rel0" Target="/3D/3dmodel.model" Type="http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"/>
</Relationships>
`
)

type modelXML struct {
	XMLName   xml.Name     `xml:"model"`
	Namespace string       `xml:"xmlns,attr"`
	Unit      string       `xml:"unit,attr"`
	Resources resourcesXML `xml:"resources"`
	Build     buildXML     `xml:"build"`
}

type resourcesXML struct {
	Objects []objectXML `xml:"object"`
}

type objectXML struct {
	ID   int     `xml:"id,attr"`
	Type string  `xml:"type,attr"`
	Mesh meshXML `xml:"mesh"`
}

type meshXML struct {
	Vertices  []vertexXML   `xml:"vertices>vertex"`
	Triangles []triangleXML `xml:"triangles>triangle"`
}

type vertexXML struct {
	X string `xml:"x,attr"`
	Y string `xml:"y,attr"`
	Z string `xml:"z,attr"`
}

type triangleXML struct {
	V1 int `xml:"v1,attr"`
	V2 int `xml:"v2,attr"`
	V3 int `xml:"v3,attr"`
}

type buildXML struct {
	Items []buildItemXML `xml:"item"`
}

type buildItemXML struct {
	ObjectID int `xml:"objectid,attr"`
}

// write3MF writes the mesh as a single-object 3MF package.
func write3MF(m *mesh.Mesh, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	if err := writeZipEntry(zw, "[Content_Types].xml", []byte(contentTypesXML)); err != nil {
		return err
	}
	if err := writeZipEntry(zw, "_rels/.rels", []byte(relsXML)); err != nil {
		return err
	}

	model := modelXML{
		Namespace: "http://schemas.microsoft.com/3dmanufacturing/core/2015/02",
		Unit:      "millimeter",
		Resources: resourcesXML{Objects: []objectXML{{
			ID:   1,
			Type: "model",
			Mesh: buildMeshXML(m),
		}}},
		Build: buildXML{Items: []buildItemXML{{ObjectID: 1}}},
	}
	body, err := xml.MarshalIndent(model, "", "  ")
	if err != nil {
		return err
	}
	body = append([]byte(xml.Header), body...)
	if err := writeZipEntry(zw, "3D/3dmodel.model", body); err != nil {
		return err
	}

	return zw.Close()
}

func buildMeshXML(m *mesh.Mesh) meshXML {
	out := meshXML{
		Vertices:  make([]vertexXML, 0, len(m.Vertices)),
		Triangles: make([]triangleXML, 0, len(m.Faces)),
	}
	for _, v := range m.Vertices {
		out.Vertices = append(out.Vertices, vertexXML{
			X: strconv.FormatFloat(v.X(), 'f', -1, 64),
			Y: strconv.FormatFloat(v.Y(), 'f', -1, 64),
			Z: strconv.FormatFloat(v.Z(), 'f', -1, 64),
		})
	}
	for _, t := range m.Faces {
		out.Triangles = append(out.Triangles, triangleXML{V1: t[0], V2: t[1], V3: t[2]})
	}
	return out
}

func writeZipEntry(zw *zip.Writer, name string, body []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
