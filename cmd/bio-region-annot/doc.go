/*Command bio-region-annot labels genomic regions with overlapping genes, and
  collects the records overlapping each region from several indexed data
  sources.

  Sample usage:
    bio-region-annot annotate --genes refGene.txt.gz --gene-format refgene \
        --mode exon --padding 100 --out regions.annot.tsv regions.bed

    bio-region-annot query --source dbsnp=dbsnp.bed.gz --source cosmic=cosmic.bed \
        --out regions.hits.tsv regions.bed

  Both commands read the region BED in full and only create the output once
  all processing succeeded, so a failed run never leaves a truncated result.
*/
package main
