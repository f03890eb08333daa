package domain

// UploadOptions describes where an image lands in the image store and how the
// delivery side should transform it.
type UploadOptions struct {
	Folder      string
	Width       int
	Height      int
	Crop        string
	ContentType string
}

var (
	SignupAvatarUpload  = UploadOptions{Folder: "anichat/avatars", Width: 200, Height: 200, Crop: "fill"}
	ProfileAvatarUpload = UploadOptions{Folder: "avatars", Width: 150, Height: 150, Crop: "fill"}
	MessageImageUpload  = UploadOptions{Folder: "messages"}
)
