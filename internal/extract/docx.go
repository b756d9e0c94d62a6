package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

func parseDOCX(_ context.Context, data []byte) (string, int, error) {
	if len(data) == 0 {
		return "", 0, errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", 0, errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	text, paragraphs, err := docxText(rc)
	if err != nil {
		return "", 0, err
	}
	return text, max(paragraphs, 1), nil
}

// docxText keeps character data and breaks lines at paragraph and break tags.
func docxText(r io.Reader) (string, int, error) {
	decoder := xml.NewDecoder(r)
	var buf strings.Builder
	paragraphs := 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if t.Name.Local == "p" {
				paragraphs++
			}
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String()), paragraphs, nil
}

func readPlainText(_ context.Context, data []byte) (string, int, error) {
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte(" "))
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", 0, errors.New("empty text file")
	}
	return text, 1, nil
}
