package storage

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/disintegration/imaging"

	"github.com/sakif/contacts-api/internal/apperror"
)

// AvatarSize is the edge length of a stored avatar in pixels.
const AvatarSize = 250

// Avatar is a normalised image ready to store.
type Avatar struct {
	Data        []byte
	ContentType string
	Ext         string
}

var avatarFormats = map[string]struct {
	format imaging.Format
	ext    string
}{
	"image/jpeg": {imaging.JPEG, ".jpg"},
	"image/png":  {imaging.PNG, ".png"},
}

// NormalizeAvatar checks that data is a JPEG or PNG image, crops it to a
// centred square and scales it to AvatarSize. The output keeps the input
// format.
func NormalizeAvatar(data []byte) (*Avatar, error) {
	contentType := http.DetectContentType(data)
	f, ok := avatarFormats[contentType]
	if !ok {
		return nil, apperror.ValidationFailed("avatar",
			fmt.Sprintf("unsupported image type %s, use JPEG or PNG", contentType))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperror.ValidationFailed("avatar", "image could not be decoded")
	}

	thumb := imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, f.format); err != nil {
		return nil, fmt.Errorf("storage: encoding avatar: %w", err)
	}

	return &Avatar{Data: buf.Bytes(), ContentType: contentType, Ext: f.ext}, nil
}
