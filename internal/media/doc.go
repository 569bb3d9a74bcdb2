// Package media wraps the external tools and image libraries the preparser
// workers rely on.
//
// It provides:
//   - Probe: stream and container inspection through ffprobe
//   - ReadTags: embedded audio tags and cover pictures
//   - Thumbnailer: image, video and audio-cover thumbnails with a disk cache
//
// Images are decoded with libvips when it has been initialised through
// InitVips and with the imaging library otherwise. Video frames are
// extracted with ffmpeg.
package media
