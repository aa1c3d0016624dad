package mem

import "errors"

// Defines the size of memory capacities.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// A Storage keeps the data of the simulated memory.
//
// The storage is managed in units. Units that are never touched by Read or
// Write do not consume host memory.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity.
func NewStorage(capacity uint64) *Storage {
	storage := new(Storage)

	storage.unitSize = 4096
	storage.capacity = capacity
	storage.data = make(map[uint64][]byte)

	return storage
}

func (s *Storage) createOrGetUnit(address uint64) ([]byte, error) {
	if address >= s.capacity {
		return nil, errors.New("accessing address beyond the storage capacity")
	}

	baseAddr, _ := s.parseAddress(address)
	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit, nil
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr
	return
}

// Read reads length bytes starting at the given address.
func (s *Storage) Read(address, length uint64) ([]byte, error) {
	currAddr := address
	lenLeft := length
	dataOffset := uint64(0)
	res := make([]byte, length)

	for currAddr < address+length {
		unit, err := s.createOrGetUnit(currAddr)
		if err != nil {
			return nil, err
		}

		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenLeftInUnit := baseAddr + s.unitSize - currAddr
		lenToRead := lenLeft
		if lenToRead > lenLeftInUnit {
			lenToRead = lenLeftInUnit
		}

		copy(res[dataOffset:dataOffset+lenToRead],
			unit[inUnitAddr:inUnitAddr+lenToRead])
		lenLeft -= lenToRead
		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res, nil
}

// Write writes the data starting at the given address.
func (s *Storage) Write(address uint64, data []byte) error {
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < uint64(len(data)) {
		unit, err := s.createOrGetUnit(currAddr)
		if err != nil {
			return err
		}

		_, inUnitAddr := s.parseAddress(currAddr)
		lenLeftInData := uint64(len(data)) - dataOffset
		lenLeftInUnit := currAddr/s.unitSize*s.unitSize + s.unitSize - currAddr
		lenToWrite := lenLeftInData
		if lenToWrite > lenLeftInUnit {
			lenToWrite = lenLeftInUnit
		}

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])
		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}

// WriteMasked writes the data starting at the given address, skipping the
// bytes whose mask bit is false. A nil mask writes all the bytes.
func (s *Storage) WriteMasked(address uint64, data []byte, mask []bool) error {
	if mask == nil {
		return s.Write(address, data)
	}

	current, err := s.Read(address, uint64(len(data)))
	if err != nil {
		return err
	}

	for i := range data {
		if mask[i] {
			current[i] = data[i]
		}
	}

	return s.Write(address, current)
}
