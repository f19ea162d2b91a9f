// Command manetsim runs the MANET routing throughput experiment and reports
// on its output files.
package main

func main() {
	Execute()
}
