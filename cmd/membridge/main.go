// Command membridge runs a round-trip simulation of the width-adapting
// bridge. It drives random writes and read-backs through the bridge and a
// beat-level memory controller and verifies every read against the last
// write to the same address.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/membridge/beatmemcontroller"
	"github.com/sarchlab/membridge/bridge"
	"github.com/sarchlab/membridge/datarecording"
	"github.com/sarchlab/membridge/mem"
	"github.com/sarchlab/membridge/sim"
)

var (
	frontFreqGHz float64
	backFreqGHz  float64
	addrWidth    int
	dataBytes    int
	ratio        int
	numRequests  int
	seed         int64
	latency      int
	tracePath    string
)

var rootCmd = &cobra.Command{
	Use:   "membridge",
	Short: "Simulate a width-adapting clock-domain-crossing memory bridge",
	RunE:  run,

	SilenceUsage: true,
}

func init() {
	flags := rootCmd.Flags()
	flags.Float64Var(&frontFreqGHz, "front-freq", 1.0,
		"front clock frequency in GHz")
	flags.Float64Var(&backFreqGHz, "back-freq", 0.5,
		"back clock frequency in GHz")
	flags.IntVar(&addrWidth, "addr-width", 10,
		"front address width in bits")
	flags.IntVar(&dataBytes, "data-bytes", 4,
		"front data width in bytes")
	flags.IntVar(&ratio, "ratio", 4,
		"front to back data width ratio, 1 or a power of two")
	flags.IntVar(&numRequests, "requests", 1024,
		"number of write requests to issue")
	flags.Int64Var(&seed, "seed", 1,
		"random seed")
	flags.IntVar(&latency, "latency", 10,
		"controller latency in back cycles")
	flags.StringVar(&tracePath, "trace", "",
		"record a trace into the SQLite database at this path")
}

func run(_ *cobra.Command, _ []string) error {
	if addrWidth < 1 || addrWidth > 32 {
		return fmt.Errorf("addr-width must be in [1, 32], got %d", addrWidth)
	}

	engine := sim.NewSerialEngine()

	var recorder datarecording.DataRecorder
	if tracePath != "" {
		recorder = datarecording.New(tracePath)
		defer recorder.Close()
	}

	frontFreq := sim.Freq(frontFreqGHz) * sim.GHz
	backFreq := sim.Freq(backFreqGHz) * sim.GHz

	ctrl := beatmemcontroller.MakeBuilder().
		WithEngine(engine).
		WithFreq(backFreq).
		WithBeatBytes(dataBytes / ratio).
		WithBurstLength(ratio).
		WithLatency(latency).
		WithNewStorage((uint64(1) << addrWidth) * uint64(dataBytes)).
		Build("Ctrl")

	comp := bridge.MakeBuilder().
		WithEngine(engine).
		WithFrontFreq(frontFreq).
		WithBackFreq(backFreq).
		WithAddrWidth(addrWidth).
		WithDataBytes(dataBytes).
		WithRatio(ratio).
		WithControllerPort(ctrl.TopPort()).
		WithRecorder(recorder).
		Build("Bridge")

	driver := newDriver(engine, frontFreq, comp.FrontPort())

	frontConn := sim.NewDirectConnection("FrontConn", engine, frontFreq)
	frontConn.PlugIn(driver.port)
	frontConn.PlugIn(comp.FrontPort())

	backConn := sim.NewDirectConnection("BackConn", engine, backFreq)
	backConn.PlugIn(comp.BottomPort())
	backConn.PlugIn(ctrl.TopPort())

	driver.generateRequests(rand.New(rand.NewSource(seed)))
	driver.TickLater()

	if err := engine.Run(); err != nil {
		return err
	}

	return driver.verify()
}

// driver issues random writes followed by read-backs and records the
// responses in arrival order.
type driver struct {
	*sim.TickingComponent

	port       sim.Port
	bridgePort sim.Port

	toSend   []sim.Msg
	expected [][]byte

	writeDone int
	readData  [][]byte
}

func newDriver(
	engine sim.Engine,
	freq sim.Freq,
	bridgePort sim.Port,
) *driver {
	d := &driver{bridgePort: bridgePort}
	d.TickingComponent = sim.NewTickingComponent(
		"Driver", engine, freq, d)
	d.port = sim.NewPort(d, 4, 4, "Driver.Port")
	d.AddPort(d.port)

	return d
}

// generateRequests scripts the full workload up front. Reads are issued
// after all writes, in write order, so the k-th response must carry the
// last data written to the k-th address.
func (d *driver) generateRequests(rng *rand.Rand) {
	numWords := uint64(1) << addrWidth
	lastWritten := make(map[uint64][]byte)
	order := []uint64{}

	for i := 0; i < numRequests; i++ {
		addr := rng.Uint64() % numWords
		data := make([]byte, dataBytes)
		rng.Read(data)

		if _, seen := lastWritten[addr]; !seen {
			order = append(order, addr)
		}
		lastWritten[addr] = data

		d.toSend = append(d.toSend, mem.WriteReqBuilder{}.
			WithSrc(d.port).
			WithDst(d.bridgePort).
			WithAddress(addr).
			WithData(data).
			Build())
	}

	for _, addr := range order {
		d.expected = append(d.expected, lastWritten[addr])

		d.toSend = append(d.toSend, mem.ReadReqBuilder{}.
			WithSrc(d.port).
			WithDst(d.bridgePort).
			WithAddress(addr).
			WithByteSize(uint64(dataBytes)).
			Build())
	}
}

func (d *driver) Tick() bool {
	madeProgress := false

	for {
		msg := d.port.RetrieveIncoming()
		if msg == nil {
			break
		}

		switch rsp := msg.(type) {
		case *mem.DataReadyRsp:
			d.readData = append(d.readData, rsp.Data)
		case *mem.WriteDoneRsp:
			d.writeDone++
		}

		madeProgress = true
	}

	if len(d.toSend) > 0 {
		if err := d.port.Send(d.toSend[0]); err == nil {
			d.toSend = d.toSend[1:]
			madeProgress = true
		}
	}

	return madeProgress
}

func (d *driver) verify() error {
	if d.writeDone != numRequests {
		return fmt.Errorf("completed %d of %d writes",
			d.writeDone, numRequests)
	}

	if len(d.readData) != len(d.expected) {
		return fmt.Errorf("received %d of %d read responses",
			len(d.readData), len(d.expected))
	}

	for i, want := range d.expected {
		got := d.readData[i]
		for j := range want {
			if got[j] != want[j] {
				return fmt.Errorf(
					"read %d returned % x, expected % x", i, got, want)
			}
		}
	}

	fmt.Printf("%d writes and %d reads verified, ratio %d\n",
		numRequests, len(d.expected), ratio)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
