package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stencilkit/stencil"
	"github.com/stencilkit/stencil/parser"
)

var debugCmd = &cobra.Command{
	Use:   "debug <template>",
	Short: "Parse a template and dump its AST",
	Long: `Debug parses a single template file with the configured syntax and
prints the parse tree. With --print-source the AST is also rendered back to
template source through the canonical printer.`,
	Args: cobra.ExactArgs(1),
	RunE: runDebug,
}

func init() {
	debugCmd.Flags().String("syntax", "", "syntax name from the configuration")
	debugCmd.Flags().Bool("print-source", false, "print the canonical template source")
	viper.BindPFlag("debug.syntax", debugCmd.Flags().Lookup("syntax"))
	viper.BindPFlag("debug.print-source", debugCmd.Flags().Lookup("print-source"))
}

func runDebug(cmd *cobra.Command, args []string) error {
	cfg, err := stencil.LoadConfig(nil, configPath())
	if err != nil {
		return err
	}
	syntax, err := cfg.SyntaxNamed(viper.GetString("debug.syntax"))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	nodes, err := parser.Parse(string(data), syntax.LexerConfig(), args[0])
	if err != nil {
		return err
	}

	for _, node := range nodes {
		fmt.Println(node.String())
	}
	if viper.GetBool("debug.print-source") {
		fmt.Println("---")
		fmt.Print(parser.PrintNodes(nodes))
	}
	return nil
}
