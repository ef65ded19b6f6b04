package common

// Scene metadata tags
const (
	TagSourceID             = "sourceID"
	TagUUID                 = "uuid"
	TagIngestionDate        = "ingestionDate"
	TagConstellation        = "constellation"
	TagSatellite            = "satellite"
	TagOrbitDirection       = "orbitDirection"
	TagRelativeOrbit        = "relativeOrbit"
	TagOrbit                = "orbit"
	TagProductType          = "productType"
	TagProcessingLevel      = "processingLevel"
	TagTile                 = "tile"
	TagCloudCoverPercentage = "cloudCoverPercentage"
	TagProvider             = "provider"
)
