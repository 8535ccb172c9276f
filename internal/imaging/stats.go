package imaging

import (
	"math"
	"strconv"
)

// BandwidthSavings summarises the effect of a compression pass.
type BandwidthSavings struct {
	SavedBytes      int64   `json:"savedBytes"`
	SavedPercentage float64 `json:"savedPercentage"`
	FormattedSaved  string  `json:"formattedSaved"`
}

// FormatFileSize renders a byte count in human-readable form ("3 MB").
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	if bytes < 0 {
		return "-" + FormatFileSize(-bytes)
	}

	const k = 1024
	sizes := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(k)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}

	value := math.Round(float64(bytes)/math.Pow(k, float64(i))*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizes[i]
}

// CalculateBandwidthSavings compares original and compressed sizes.
func CalculateBandwidthSavings(originalSize, compressedSize int64) BandwidthSavings {
	saved := originalSize - compressedSize
	var pct float64
	if originalSize > 0 {
		pct = float64(saved) / float64(originalSize) * 100
	}
	return BandwidthSavings{
		SavedBytes:      saved,
		SavedPercentage: pct,
		FormattedSaved:  FormatFileSize(saved),
	}
}

// EstimateUploadTime returns the expected upload duration in seconds for a
// payload of the given size at the given connection speed.
func EstimateUploadTime(fileSizeBytes int64, connectionSpeedMbps float64) float64 {
	if connectionSpeedMbps <= 0 {
		connectionSpeedMbps = 2
	}
	fileSizeMbits := float64(fileSizeBytes) * 8 / (1024 * 1024)
	return fileSizeMbits / connectionSpeedMbps
}
