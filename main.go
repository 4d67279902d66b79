package main

import "github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/cmd"

func main() {
	cmd.Execute()
}
