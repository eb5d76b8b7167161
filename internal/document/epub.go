package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// extractEPUB returns the text of the spine documents in reading order,
// one block per chapter
func extractEPUB(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open EPUB: %w", err)
	}

	files := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		files[f.Name] = f
	}

	var container epubContainer
	if err := decodeZipXML(files, "META-INF/container.xml", &container); err != nil {
		return "", err
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("container.xml names no package document")
	}
	opfPath := container.Rootfiles[0].FullPath

	var pkg epubPackage
	if err := decodeZipXML(files, opfPath, &pkg); err != nil {
		return "", err
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		if strings.Contains(item.MediaType, "html") {
			hrefs[item.ID] = path.Join(path.Dir(opfPath), item.Href)
		}
	}

	var chapters []string
	for _, ref := range pkg.Spine {
		name, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		f, ok := files[name]
		if !ok {
			return "", fmt.Errorf("spine item %s not found", name)
		}
		raw, err := readZipFile(f)
		if err != nil {
			return "", err
		}
		if text := htmlToText(DecodeText(raw)); text != "" {
			chapters = append(chapters, text)
		}
	}

	return strings.Join(chapters, "\n\n"), nil
}

func decodeZipXML(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("%s not found", name)
	}
	raw, err := readZipFile(f)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
