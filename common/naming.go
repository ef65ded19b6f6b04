package common

import (
	"fmt"
	"strings"
	"time"
)

//go:generate go run github.com/dmarkham/enumer -json -type Constellation

// Constellation defines the kind of satellites
type Constellation int

const (
	Unknown   Constellation = iota
	Sentinel2               // MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<Product Discriminator>.SAFE or MMM_CCCC_FFFFDDDDDD_ssss_YYYYMMDDTHHMMSS_ROOO_VYYYYMMTDDHHMMSS_YYYYMMTDDHHMMSS.SAFE
)

// GetConstellationFromString returns the constellation from the user input
func GetConstellationFromString(input string) Constellation {
	switch strings.ToLower(input) {
	case "sentinel2", "sentinel-2":
		return Sentinel2
	}
	return GetConstellationFromProductId(input)
}

func GetConstellationFromProductId(sceneName string) Constellation {
	if strings.HasPrefix(sceneName, "S2") {
		return Sentinel2
	}
	return Unknown
}

func GetDateFromProductId(sceneName string) (time.Time, error) {
	format, err := Info(sceneName)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse("20060102", fmt.Sprintf("%s%s%s", format["YEAR"], format["MONTH"], format["DAY"]))
}

func Info(sceneName string) (map[string]string, error) {
	switch GetConstellationFromProductId(sceneName) {
	case Sentinel2:
		if len(sceneName) < len("MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<Product Disc.>") {
			return nil, fmt.Errorf("invalid Sentinel2 file name: %s", sceneName)
		}
		if sceneName[10] == '_' {
			return map[string]string{
				"SCENE":           sceneName,
				"MISSION_ID":      sceneName[0:3],
				"MISSION_VERSION": sceneName[2:3],
				"PRODUCT_LEVEL":   sceneName[7:10],
				"DATE":            sceneName[11:19],
				"YEAR":            sceneName[11:15],
				"MONTH":           sceneName[15:17],
				"DAY":             sceneName[17:19],
				"TIME":            sceneName[20:26],
				"HOUR":            sceneName[20:22],
				"MINUTE":          sceneName[22:24],
				"SECOND":          sceneName[24:26],
				"PDGS":            sceneName[28:32],
				"ORBIT":           sceneName[34:37],
				"TILE":            sceneName[38:44],
				"LATITUDE_BAND":   sceneName[39:41],
				"GRID_SQUARE":     sceneName[41:42],
				"GRANULE_ID":      sceneName[42:44],
				"PRODUCT_DISC":    sceneName[45:60],
			}, nil
		} else if len(sceneName) < len("MMM_CCCC_FFFFDDDDDD_ssss_YYYYMMDDTHHMMSS_ROOO_VYYYYMMTDDHHMMSS_YYYYMMTDDHHMMSS") {
			return nil, fmt.Errorf("invalid Sentinel2 file name: %s", sceneName)
		}
		return map[string]string{
			"SCENE":         sceneName,
			"MISSION_ID":    sceneName[0:3],
			"PRODUCT_LEVEL": sceneName[16:19],
			"ORBIT":         sceneName[42:45],
		}, nil
	}
	return nil, fmt.Errorf("Info: constellation not supported")
}

// FormatBrackets replaces in <str> all {keys} of <infos> by the corresponding value
// For Sentinel2, keys are SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), PDGS, ORBIT, TILE (LATITUDE_BAND/GRID_SQUARE/GRANULE_ID)
func FormatBrackets(str string, infos ...map[string]string) string {
	for _, info := range infos {
		for k, v := range info {
			str = strings.ReplaceAll(str, "{"+k+"}", v)
		}
	}
	return str
}
