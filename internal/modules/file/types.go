package file

// SignedParams is everything a client needs to upload directly to Cloudinary.
type SignedParams struct {
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
	Folder    string `json:"folder"`
	CloudName string `json:"cloudName"`
	APIKey    string `json:"apiKey"`
}
