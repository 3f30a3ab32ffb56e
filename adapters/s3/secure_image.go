package s3

// SecureMIMETypesExtension lists the image types the gallery accepts, with
// their canonical extensions. The detected MIME type of the upload must be
// in this set; the client-declared type is ignored.
var SecureMIMETypesExtension = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// CheckSecureImageAndGetExtension reports whether mimeType is an allowed
// image type and returns the matching extension.
func CheckSecureImageAndGetExtension(mimeType string) (bool, string) {
	ext, ok := SecureMIMETypesExtension[mimeType]
	return ok, ext
}
