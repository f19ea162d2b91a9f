package stats

import (
	"os"
)

// appendToFile opens path for appending, writes data and closes the file
// again. No handle is kept between ticks.
func appendToFile(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()

	_, err = f.Write(data)

	return err
}

// truncateFile creates path or empties it.
func truncateFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
