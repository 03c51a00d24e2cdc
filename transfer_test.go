package seoconsole

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{
			ID:               "1",
			RoutePath:        "/",
			ValidationStatus: StatusValid,
			SEOFields: SEOFields{
				Title:        str(`Home, "sweet" home`),
				Description:  str("Welcome"),
				CanonicalURL: str("https://example.com/"),
				OGImageURL:   str("https://example.com/og.png"),
				Robots:       str("index, follow"),
			},
		},
		{ID: "2", RoutePath: "/about", ValidationStatus: StatusPending},
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleRecords()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Route Path,Title,Description,Status,Canonical URL,OG Image,Robots", lines[0])
	assert.Equal(t, `/,"Home, ""sweet"" home",Welcome,valid,https://example.com/,https://example.com/og.png,"index, follow"`, lines[1])
	assert.Equal(t, "/about,,,pending,,,", lines[2])
}

func TestCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleRecords()))

	inputs, err := ParseCSV(&buf)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	home := inputs[0]
	assert.Equal(t, "/", home.RoutePath)
	assert.Equal(t, `Home, "sweet" home`, *home.Title)
	assert.Equal(t, "https://example.com/", *home.CanonicalURL)
	assert.Equal(t, "https://example.com/og.png", *home.OGImageURL)
	assert.Equal(t, "index, follow", *home.Robots)

	about := inputs[1]
	assert.Equal(t, "/about", about.RoutePath)
	assert.Nil(t, about.Title)
	assert.Nil(t, about.CanonicalURL)
}

func TestParseCSVErrors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseCSV(strings.NewReader("Path,Title\n/,x\n"))
	assert.Error(t, err)

	inputs, err := ParseCSV(strings.NewReader("Route Path,Title\n,skipped\n/short,Only title\n"))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "/short", inputs[0].RoutePath)
	assert.Equal(t, "Only title", *inputs[0].Title)
}

func TestJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, sampleRecords()))

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "valid", raw[0]["validationStatus"])

	inputs, err := ParseJSON(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "/", inputs[0].RoutePath)
	assert.Equal(t, "Welcome", *inputs[0].Description)
	assert.NoError(t, inputs[0].Validate())
}

func TestExportJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestParseJSONError(t *testing.T) {
	_, err := ParseJSON(strings.NewReader(`{"routePath":"/"}`))
	assert.Error(t, err)
}
