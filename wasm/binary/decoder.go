// Package binary decodes and encodes modules in the WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-format%E2%91%A0
package binary

import (
	"bytes"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dfinity-lab/wasmjit/wasm"
)

// magic is the 4 byte preamble (literally "\0asm") of the binary format
// See https://www.w3.org/TR/wasm-core-1/#binary-magic
var magic = []byte{0x00, 0x61, 0x73, 0x6D}

// version is format version and doesn't change between known WebAssembly Core versions
// See https://www.w3.org/TR/wasm-core-1/#binary-version
var version = []byte{0x01, 0x00, 0x00, 0x00}

// versionPreMVP is the last pre-release version, still emitted by some older toolchains.
var versionPreMVP = []byte{0x0d, 0x00, 0x00, 0x00}

// Decoder decodes a module. The zero value is ready to use.
type Decoder struct {
	// Logger receives debug events such as skipped custom sections. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DecodeModule decodes the binary with a zero Decoder.
func DecodeModule(binary []byte) (*wasm.Module, error) {
	return (&Decoder{}).Decode(binary)
}

// Decode implements a single forward pass over the sections of the binary. Any failure is a *wasm.ModuleLoadError
// carrying the offset where it was detected.
func (d *Decoder) Decode(binary []byte) (*wasm.Module, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := NewCursor(binary)
	if buf, err := r.ReadBytes(4); err != nil || !bytes.Equal(buf, magic) {
		return nil, r.Error(wasm.ErrInvalidMagicNumber)
	}
	if buf, err := r.ReadBytes(4); err != nil || (!bytes.Equal(buf, version) && !bytes.Equal(buf, versionPreMVP)) {
		return nil, r.Error(wasm.ErrInvalidVersion)
	}

	m := &wasm.Module{}
	var previous wasm.SectionID
	for {
		sectionID, ok, err := r.TryReadVarUint7()
		if err != nil {
			return nil, r.Error(fmt.Errorf("read section id: %w", err))
		} else if !ok {
			break
		}
		headerOffset := r.ReadOffset()

		if sectionID != wasm.SectionIDCustom {
			if sectionID > wasm.SectionIDData {
				return nil, r.Error(fmt.Errorf("%w: %#x", wasm.ErrInvalidSectionID, sectionID))
			}
			if sectionID <= previous {
				return nil, wasm.NewModuleLoadError(headerOffset, fmt.Errorf(
					"sections out of order; section %s encountered after %s",
					wasm.SectionIDName(sectionID), wasm.SectionIDName(previous)))
			}
			previous = sectionID
		}

		sectionSize, err := r.ReadVarUint32()
		if err != nil {
			return nil, r.Error(fmt.Errorf("get size of section %s: %w", wasm.SectionIDName(sectionID), err))
		}
		if uint64(sectionSize) > uint64(r.Remaining()) {
			return nil, r.Errorf("section %s: size %d exceeds remaining %d bytes",
				wasm.SectionIDName(sectionID), sectionSize, r.Remaining())
		}

		sectionContentStart := r.Offset()
		switch sectionID {
		case wasm.SectionIDCustom:
			err = d.decodeCustomSection(r, m, sectionSize, logger)
		case wasm.SectionIDType:
			m.TypeSection, err = decodeTypeSection(r)
		case wasm.SectionIDImport:
			m.ImportSection, err = decodeImportSection(r, m)
		case wasm.SectionIDFunction:
			m.FunctionSection, err = decodeFunctionSection(r, m)
		case wasm.SectionIDTable:
			m.TableSection, err = decodeTableSection(r, m)
		case wasm.SectionIDMemory:
			m.MemorySection, err = decodeMemorySection(r, m)
		case wasm.SectionIDGlobal:
			m.GlobalSection, err = decodeGlobalSection(r, m)
		case wasm.SectionIDExport:
			m.ExportSection, err = decodeExportSection(r, m)
		case wasm.SectionIDStart:
			m.StartSection, err = decodeStartSection(r, m)
		case wasm.SectionIDElement:
			m.ElementSection, err = decodeElementSection(r, m)
		case wasm.SectionIDCode:
			m.CodeSection, err = decodeCodeSection(r, m)
		case wasm.SectionIDData:
			m.DataSection, err = decodeDataSection(r, m)
		}

		if err == nil && sectionContentStart+int(sectionSize) != r.Offset() {
			err = fmt.Errorf("invalid section length: expected to be %d but got %d",
				sectionSize, r.Offset()-sectionContentStart)
		}
		if err != nil {
			return nil, sectionError(r, sectionID, err)
		}
	}

	if len(m.FunctionSection) != len(m.CodeSection) {
		return nil, r.Errorf("function and code section have inconsistent lengths: %d != %d",
			len(m.FunctionSection), len(m.CodeSection))
	}
	return m, nil
}

// sectionError prefixes err with the section name. An offset already attached by a nested cursor wins over the
// offset of the outer read.
func sectionError(r *Cursor, sectionID wasm.SectionID, err error) error {
	offset := r.ReadOffset()
	var mle *wasm.ModuleLoadError
	if errors.As(err, &mle) {
		offset, err = mle.Offset, mle.Err
	}
	return wasm.NewModuleLoadError(offset, fmt.Errorf("section %s: %w", wasm.SectionIDName(sectionID), err))
}

func (d *Decoder) decodeCustomSection(r *Cursor, m *wasm.Module, sectionSize uint32, logger *zap.Logger) error {
	start := r.Offset()
	name, err := r.ReadName()
	if err != nil {
		return fmt.Errorf("read custom section name: %w", err)
	}
	nameSize := uint32(r.Offset() - start)
	if nameSize > sectionSize {
		return fmt.Errorf("malformed custom section %s", name)
	}
	data, err := r.ReadBytes(sectionSize - nameSize)
	if err != nil {
		return fmt.Errorf("read custom section %s: %w", name, err)
	}

	if name == "name" {
		ns, err := decodeNameSection(data)
		if err != nil {
			// Names are debug metadata: a broken name section never fails the module.
			logger.Debug("ignoring malformed name section", zap.Int("offset", start), zap.Error(err))
			return nil
		}
		m.NameSection = ns
		return nil
	}

	logger.Debug("keeping custom section", zap.String("name", name), zap.Int("size", len(data)))
	if m.CustomSections == nil {
		m.CustomSections = map[string][]byte{}
	}
	m.CustomSections[name] = data
	return nil
}
