package device

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// Image is a flash image, or a window of one, held in memory. The scanner
// walks it as a single byte slice.
type Image struct {
	path   string
	offset int64
	data   []byte
}

// OpenImage reads the image at path from the host filesystem.
func OpenImage(path string, config *ImageConfig) (*Image, error) {
	return OpenImageFs(afero.NewOsFs(), path, config)
}

// OpenImageFs reads the image at path from fs, honouring the configured
// offset and length window.
func OpenImageFs(fs afero.Fs, path string, config *ImageConfig) (*Image, error) {
	if config == nil {
		config = &ImageConfig{}
	}

	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	size := stat.Size()
	if config.Offset > size {
		return nil, fmt.Errorf("offset %d is beyond the end of the %d byte image", config.Offset, size)
	}
	length := size - config.Offset
	if config.Length > 0 {
		if config.Length > length {
			return nil, fmt.Errorf("window of %d bytes at offset %d exceeds the %d byte image", config.Length, config.Offset, size)
		}
		length = config.Length
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(file, config.Offset, length), data); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	return &Image{path: path, offset: config.Offset, data: data}, nil
}

// NewImage wraps an image already in memory.
func NewImage(data []byte) *Image {
	return &Image{data: data}
}

// Bytes returns the image contents. The slice must not be modified.
func (i *Image) Bytes() []byte {
	return i.data
}

// Size returns the number of bytes in the image window.
func (i *Image) Size() int64 {
	return int64(len(i.data))
}

// Path returns the file the image was read from, if any.
func (i *Image) Path() string {
	return i.path
}

// Offset returns the position of the window within the file.
func (i *Image) Offset() int64 {
	return i.offset
}

// Close releases the image buffer.
func (i *Image) Close() error {
	i.data = nil
	return nil
}
