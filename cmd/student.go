package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"attendance-sync/internal/storage"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage students",
}

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List students",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		students, err := provider.ListStudents(ctx)
		if err != nil {
			slog.Error("Failed to list students", "error", err)
			os.Exit(1)
		}

		if len(students) == 0 {
			fmt.Println("No students registered")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STUDENT ID\tNAME\tBIOMETRIC ID\tACTIVE")
		for _, student := range students {
			biometricID := ""
			if student.BiometricID != nil {
				biometricID = *student.BiometricID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n",
				student.StudentID, student.FullName, biometricID, student.IsActive)
		}
		w.Flush()
	},
}

var studentAddCmd = &cobra.Command{
	Use:   "add <student_id> <full_name>",
	Short: "Register a student",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		biometricID, _ := cmd.Flags().GetString("biometric-id")

		student := storage.Student{
			StudentID: args[0],
			FullName:  args[1],
			IsActive:  true,
		}
		if biometricID != "" {
			student.BiometricID = &biometricID
		}

		if err := provider.CreateStudent(ctx, student); err != nil {
			slog.Error("Failed to create student", "student_id", args[0], "error", err)
			os.Exit(1)
		}

		fmt.Printf("Student %s registered\n", args[0])
	},
}

func init() {
	studentAddCmd.Flags().StringP("biometric-id", "b", "", "Biometric identifier enrolled on devices")

	studentCmd.AddCommand(studentListCmd)
	studentCmd.AddCommand(studentAddCmd)
	rootCmd.AddCommand(studentCmd)
}
