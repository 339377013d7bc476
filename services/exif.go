package services

import (
	"strings"

	"github.com/dsoprea/go-exif/v3"
)

// ExifInfo summarizes the metadata found in an uploaded file. Uploads are re-encoded,
// so none of it survives into stored media; HasLocation lets the client tell the
// creator that location data was removed.
type ExifInfo struct {
	Present     bool   `json:"present"`
	HasLocation bool   `json:"has_location"`
	Camera      string `json:"camera,omitempty"`
}

// InspectExif reads EXIF tags from raw file bytes. Files without EXIF yield a zero value.
func InspectExif(data []byte) ExifInfo {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return ExifInfo{}
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return ExifInfo{}
	}
	info := ExifInfo{Present: len(entries) > 0}
	var maker, model string
	for _, e := range entries {
		if strings.Contains(e.IfdPath, "GPS") || strings.HasPrefix(e.TagName, "GPS") {
			info.HasLocation = true
		}
		switch e.TagName {
		case "Make":
			maker = strings.TrimSpace(e.Formatted)
		case "Model":
			model = strings.TrimSpace(e.Formatted)
		}
	}
	info.Camera = strings.TrimSpace(maker + " " + model)
	return info
}
