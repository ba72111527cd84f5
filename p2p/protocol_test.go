//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"bytes"
	"fmt"
	"testing"
)

var tests = []interface{}{
	byte(42),
	uint64(43),
	uint32(44),
	"Hello, world!",
	make([]byte, 1024),
	make([]byte, 2*1024*1024),
}

func writer(c *Conn) {
	for _, test := range tests {
		switch d := test.(type) {
		case byte:
			if err := c.SendByte(d); err != nil {
				fmt.Printf("SendByte: %v\n", err)
			}

		case uint32:
			if err := c.SendUint32(int(d)); err != nil {
				fmt.Printf("SendUint32: %v\n", err)
			}

		case uint64:
			if err := c.SendUint64(d); err != nil {
				fmt.Printf("SendUint64: %v\n", err)
			}

		case string:
			if err := c.SendString(d); err != nil {
				fmt.Printf("SendString: %v\n", err)
			}

		case []byte:
			if err := c.SendData(d); err != nil {
				fmt.Printf("SendData [%v]byte: %v\n", len(d), err)
			}

		default:
			fmt.Printf("writer: invalid data: %v(%T)\n", test, test)
		}
	}
	if err := c.Flush(); err != nil {
		fmt.Printf("Flush: %v\n", err)
	}
}

func TestProtocol(t *testing.T) {
	c0, c1 := Pipe()

	go writer(c0)

	for _, test := range tests {
		switch d := test.(type) {
		case byte:
			val, err := c1.ReceiveByte()
			if err != nil {
				t.Fatalf("ReceiveByte: %v", err)
			}
			if val != d {
				t.Errorf("ReceiveByte: got %v, expected %v", val, d)
			}

		case uint32:
			val, err := c1.ReceiveUint32()
			if err != nil {
				t.Fatalf("ReceiveUint32: %v", err)
			}
			if val != int(d) {
				t.Errorf("ReceiveUint32: got %v, expected %v", val, d)
			}

		case uint64:
			val, err := c1.ReceiveUint64()
			if err != nil {
				t.Fatalf("ReceiveUint64: %v", err)
			}
			if val != d {
				t.Errorf("ReceiveUint64: got %v, expected %v", val, d)
			}

		case string:
			val, err := c1.ReceiveString()
			if err != nil {
				t.Fatalf("ReceiveString: %v", err)
			}
			if val != d {
				t.Errorf("ReceiveString: got %v, expected %v", val, d)
			}

		case []byte:
			val, err := c1.ReceiveData()
			if err != nil {
				t.Fatalf("ReceiveData: %v", err)
			}
			if !bytes.Equal(val, d) {
				t.Errorf("ReceiveData: got %d bytes, expected %d",
					len(val), len(d))
			}

		default:
			t.Fatalf("invalid test data: %v(%T)", test, test)
		}
	}
	if c1.Stats.Recvd.Load() == 0 {
		t.Errorf("no received bytes accounted")
	}
}

func TestUint64Boundary(t *testing.T) {
	c0, c1 := Pipe()

	values := []uint64{0, 1, 0x8000000000000000, 0xffffffffffffffff}
	go func() {
		for _, v := range values {
			if err := c0.SendUint64(v); err != nil {
				fmt.Printf("SendUint64: %v\n", err)
			}
		}
		if err := c0.Flush(); err != nil {
			fmt.Printf("Flush: %v\n", err)
		}
	}()

	for _, v := range values {
		got, err := c1.ReceiveUint64()
		if err != nil {
			t.Fatalf("ReceiveUint64: %v", err)
		}
		if got != v {
			t.Errorf("ReceiveUint64: got %x, expected %x", got, v)
		}
	}
}
