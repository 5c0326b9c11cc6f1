package nnue

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const magic = "CNUE"

// LoadFromReader parses the on-disk quantized weight format:
//
//	magic     [4]byte  "CNUE"
//	version   uint32   must be 1
//	inputDim  uint32   must equal InputDim
//	h1        uint32   must equal H1Size
//	h2        uint32   must equal H2Size
//	actMax    uint32
//	shift2    uint32
//	shift3    uint32
//	ftWeights [InputDim*H1Size]int16  (feature-major)
//	ftBiases  [H1Size]int32
//	l2Weights [H2Size*H1Size]int8     (output-major)
//	l2Biases  [H2Size]int32
//	outWeights [H2Size]int8
//	outBias   int32
func LoadFromReader(r io.Reader) (*Network, error) {
	magicBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, magicBuf); err != nil {
		return nil, fmt.Errorf("nnue: reading magic: %w", err)
	}
	if string(magicBuf) != magic {
		return nil, fmt.Errorf("nnue: bad magic %q", magicBuf)
	}

	header := make([]uint32, 7)
	buf := make([]byte, 4)
	for i := range header {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("nnue: reading header: %w", err)
		}
		header[i] = binary.LittleEndian.Uint32(buf)
	}
	version, inputDim, h1, h2, actMax, shift2, shift3 := header[0], header[1], header[2], header[3], header[4], header[5], header[6]
	if version != 1 {
		return nil, fmt.Errorf("nnue: unsupported version %d", version)
	}
	if int(inputDim) != InputDim || int(h1) != H1Size || int(h2) != H2Size {
		return nil, fmt.Errorf("nnue: topology mismatch: file has %d/%d/%d, want %d/%d/%d",
			inputDim, h1, h2, InputDim, H1Size, H2Size)
	}
	if shift2 > 31 || shift3 > 31 {
		return nil, fmt.Errorf("nnue: impossible shift values shift2=%d shift3=%d", shift2, shift3)
	}

	n := &Network{ActMax: int32(actMax), Shift2: shift2, Shift3: shift3}

	if err := readInt16s(r, n.FtWeights[:]); err != nil {
		return nil, fmt.Errorf("nnue: reading ftWeights: %w", err)
	}
	if err := readInt32s(r, n.FtBiases[:]); err != nil {
		return nil, fmt.Errorf("nnue: reading ftBiases: %w", err)
	}
	if err := readInt8s(r, n.L2Weights[:]); err != nil {
		return nil, fmt.Errorf("nnue: reading l2Weights: %w", err)
	}
	if err := readInt32s(r, n.L2Biases[:]); err != nil {
		return nil, fmt.Errorf("nnue: reading l2Biases: %w", err)
	}
	if err := readInt8s(r, n.OutWeights[:]); err != nil {
		return nil, fmt.Errorf("nnue: reading outWeights: %w", err)
	}
	obuf := make([]byte, 4)
	if _, err := io.ReadFull(r, obuf); err != nil {
		return nil, fmt.Errorf("nnue: reading outBias: %w", err)
	}
	n.OutBias = int32(binary.LittleEndian.Uint32(obuf))

	return n, nil
}

func readInt16s(r io.Reader, dst []int16) error {
	buf := make([]byte, 2*len(dst))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return nil
}

func readInt32s(r io.Reader, dst []int32) error {
	buf := make([]byte, 4*len(dst))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = int32(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return nil
}

func readInt8s(r io.Reader, dst []int8) error {
	buf := make([]byte, len(dst))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = int8(buf[i])
	}
	return nil
}

func LoadFromFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(f)
}
