package pipeline

import "os"

func writeTemp(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func readTemp(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func removeTemp(path string) {
	_ = os.Remove(path)
}
